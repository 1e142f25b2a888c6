// Package cli implements the command-line interface for eventsync.
//
// The cli package provides the Cobra-based CLI. The scrape command scrapes
// event URLs or a roster of groups and prints the reconciled table as text or
// JSON, optionally publishing, saving and announcing it. The serve command
// runs the HTTP API. Both build their fetcher, store and outputs from the
// viper configuration in the config package.
package cli
