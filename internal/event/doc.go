// Package event defines the canonical Event Record shared by every stage of
// the pipeline, the Raw result produced by source extractors, and the date
// parsing used to turn heterogeneous page text into timestamps.
//
// Records carry a deterministic SHA1-based ID derived from the source URL so
// that the same page scraped on different runs maps to the same row.
package event
