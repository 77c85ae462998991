// Package chartsync keeps the visible x-ranges of linked charts in step.
//
// A zoom or pan on one chart is reported with Bus.ReportRangeChange. Reports
// are debounced; when the debounce fires the range is applied to every other
// linked chart. Applying a range makes the target chart re-emit its own range
// event, so a guard window (State.IsSyncing) drops reports while a
// propagation is in progress and for a short settle period after it.
//
//	bus := chartsync.NewBus(chartsync.Options{Logger: log})
//	link := chartsync.NewLink(bus)
//	link.Attach("commits", commitsChart)
//	link.Attach("lines", linesChart)
//	link.Report("commits", chartsync.Range{Min: from, Max: to})
package chartsync
