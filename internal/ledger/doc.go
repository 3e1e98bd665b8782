// Package ledger maintains per-lot occupancy counters and their event logs.
//
// Layout in the document store:
//
//	lots/{lotId}                         {name, capacity, latitude, longitude, description}
//	lots/{lotId}/_meta/current_status    {count_now, last_updated}
//	lots/{lotId}/events/{autoId}         {timestamp, direction, source, confidence}
//
// Every ENTRY/EXIT goes through Record, which reads the lot and its status,
// appends one event and writes the clamped count in a single optimistic
// transaction. Conflicting transactions are retried up to the configured
// attempt budget and then fail with CONFLICT.
//
// A lot whose capacity is not a number has no upper bound; the count is
// still never negative.
package ledger
