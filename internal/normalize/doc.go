// Package normalize turns raw extraction results into canonical event
// records: timestamps are parsed in the configured zone, missing ends are
// defaulted, titles are cleaned and image references are made absolute.
package normalize
