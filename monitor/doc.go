// Package monitor loads code-activity data for courses through a freshness
// Coordinator. Activity is cached in the "monitoringData" cache; callers get
// cached data immediately and watchers are told when a refresh changes it.
package monitor
