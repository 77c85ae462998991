package freshness

import "sync/atomic"

// Stats is a point-in-time copy of coordinator counters.
type Stats struct {
	Hits            uint64 // fresh values served
	StaleHits       uint64 // stale values served (each starts a refresh)
	Misses          uint64 // cold misses that ran the producer
	Shared          uint64 // calls that joined a pending flight
	Refreshes       uint64 // background refreshes started
	RefreshFailures uint64
}

type counters struct {
	hits, staleHits, misses, shared atomic.Uint64
	refreshes, refreshFailures      atomic.Uint64
}

func (co *Coordinator) Stats() Stats {
	return Stats{
		Hits:            co.stats.hits.Load(),
		StaleHits:       co.stats.staleHits.Load(),
		Misses:          co.stats.misses.Load(),
		Shared:          co.stats.shared.Load(),
		Refreshes:       co.stats.refreshes.Load(),
		RefreshFailures: co.stats.refreshFailures.Load(),
	}
}
