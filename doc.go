// Package freshness implements an in-memory stale-while-revalidate cache.
//
// Values live in named caches owned by a Registry. An entry older than its
// cache's expiry is stale: it is still served, and a refresh is started in the
// background. Entries that stay stale past expiry+grace are removed by a
// periodic sweep that only runs while the cache holds entries.
//
// Components:
//   - Registry: named caches plus key subscribers. Constructed explicitly and
//     passed to whoever needs it.
//   - NamedCache: entries with expiry, stale marking and sweep.
//   - Coordinator: CachedFetch / Fetch, one in-flight producer per key,
//     background refresh and invalidation.
//   - GenStore: per-key generations; a fetch started before Invalidate never
//     writes its result.
//
// Typical use:
//
//	reg := freshness.NewRegistry(freshness.Options{Logger: log})
//	defer reg.Close(ctx)
//	co := freshness.NewCoordinator(reg, freshness.CoordinatorOptions{})
//	defer co.Close(ctx)
//
//	act, err := freshness.Fetch(ctx, co, "course:42", "monitoringData", 5*time.Minute,
//	    func(ctx context.Context) (monitor.CourseActivity, error) { return src.Load(ctx, "42") })
//
// Cold misses block and return producer errors. Stale reads return
// immediately; background failures are reported through Hooks and the Logger.
package freshness
