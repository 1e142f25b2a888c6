// Package pipeline runs the scrape flow end to end.
//
// URLs are dispatched to an extractor, grouped into one unit of work per
// source and scraped by a bounded pool of workers. Within a unit, fetches are
// sequential with a fixed delay between them. Each worker owns its output
// slot; the collections are reconciled single-threaded once every worker has
// finished. The reconciled table can then be persisted, published to
// calendars and sent as a digest. Per-URL failures become report counters;
// they never stop the run.
package pipeline
