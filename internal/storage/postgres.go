package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	source_url     TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	start_datetime TIMESTAMPTZ,
	end_datetime   TIMESTAMPTZ,
	date_text      TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	image_url      TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	group_name     TEXT NOT NULL DEFAULT '',
	online         BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS organizations (
	name       TEXT NOT NULL,
	source     TEXT NOT NULL,
	identifier TEXT NOT NULL,
	PRIMARY KEY (name, source)
);`

const eventColumns = `source_url, title, start_datetime, end_datetime, date_text, location,
	description, image_url, source, group_name, online`

// PostgresStore keeps the events and organizations tables in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to connStr and creates the tables if needed.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Migrate creates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// UpsertEvents implements Store within a single transaction.
func (s *PostgresStore) UpsertEvents(ctx context.Context, rows []reconcile.Row) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	batch := &pgx.Batch{}
	queued := 0
	for _, row := range rows {
		if row.SourceURL == "" {
			continue
		}
		// xmax = 0 only for freshly inserted tuples
		batch.Queue(`INSERT INTO events (`+eventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (source_url) DO UPDATE SET
				title = EXCLUDED.title,
				start_datetime = EXCLUDED.start_datetime,
				end_datetime = EXCLUDED.end_datetime,
				date_text = EXCLUDED.date_text,
				location = EXCLUDED.location,
				description = EXCLUDED.description,
				image_url = EXCLUDED.image_url,
				source = EXCLUDED.source,
				group_name = EXCLUDED.group_name,
				online = EXCLUDED.online,
				updated_at = NOW()
			RETURNING (xmax = 0)`,
			row.SourceURL, row.Title, row.Start, row.End, row.DateText, row.Location,
			row.Description, row.ImageURL, row.Source, row.GroupName, row.Online)
		queued++
	}

	inserted := 0
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < queued; i++ {
		var isNew bool
		if err := results.QueryRow().Scan(&isNew); err != nil {
			results.Close() // nolint:errcheck
			return 0, fmt.Errorf("upserting events: %w", err)
		}
		if isNew {
			inserted++
		}
	}
	if err := results.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadEvents implements Store.
func (s *PostgresStore) LoadEvents(ctx context.Context) ([]reconcile.Row, error) {
	rows, err := s.db.Query(ctx, `SELECT `+eventColumns+` FROM events
		ORDER BY start_datetime ASC NULLS LAST, source_url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconcile.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetEvent implements Store.
func (s *PostgresStore) GetEvent(ctx context.Context, sourceURL string) (reconcile.Row, error) {
	row, err := scanRow(s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE source_url = $1`, sourceURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return reconcile.Row{}, fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	}
	return row, err
}

// LoadOrganizations implements Store.
func (s *PostgresStore) LoadOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.Query(ctx, `SELECT name, source, identifier FROM organizations ORDER BY name, source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	index := make(map[string]int)
	for rows.Next() {
		var name, source, identifier string
		if err := rows.Scan(&name, &source, &identifier); err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			i = len(orgs)
			index[name] = i
			orgs = append(orgs, Organization{Name: name, Sources: make(map[string]string)})
		}
		orgs[i].Sources[source] = identifier
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cleanOrganizations(orgs), nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanRow(r pgx.Row) (reconcile.Row, error) {
	var (
		row        reconcile.Row
		start, end *time.Time
	)
	err := r.Scan(&row.SourceURL, &row.Title, &start, &end, &row.DateText, &row.Location,
		&row.Description, &row.ImageURL, &row.Source, &row.GroupName, &row.Online)
	if err != nil {
		return reconcile.Row{}, err
	}
	row.Start, row.End = start, end
	return row, nil
}
