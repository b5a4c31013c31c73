// Package trend derives dashboard analytics from stored readings.
//
// The pure functions (ParseLevel, Delta, Classify, Fill, Sparkline, Recent)
// hold the numeric rules. Engine combines them with a reading.Store and the
// catalog to answer the two renderer-facing queries: LatestWithTrend for the
// live dashboard and SummaryForReport for the email digest.
//
// Nothing here is persisted. Summaries are recomputed from the store on
// every request.
package trend
