// Package reconcile turns a cumulative, append-only item feed into a fixed set of filled slots.
//
// A Session pre-allocates N empty slots for a hub. Each time a new cumulative snapshot
// arrives the session extracts the items appended since the previous snapshot (by position,
// not by set difference) and binds them to empty slots in creation order. Every item id is
// consumed at most once and every slot is filled at most once.
//
// A Loop drives a Session by polling a Source at a fixed interval until the target count is
// reached, the source fails, or the loop is stopped. Consumers observe progress through a Sink
// and may read the Pool at any time.
package reconcile
