// Package storage provides persistence for the events and organizations
// tables.
//
// The file store keeps events as JSON keyed by source URL in
// events.json and reads the organizations roster from a CSV, YAML or JSON
// file in the same directory. The default location is
// ~/.local/share/eventsync/. PostgresStore keeps both tables in PostgreSQL.
// Both upsert events by source URL.
package storage
