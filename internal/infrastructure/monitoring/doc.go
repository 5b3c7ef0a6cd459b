/*
Package monitoring provides Prometheus metrics for the script engine.

Instruments cover module loads and reloads, the require cache, script
failures by kind, free-roam scheduling and inline event-handler compilation.
Construct with a dedicated registerer:

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	engine, _ := script.New(script.SideServer, store,
		script.WithMetrics(metrics))

All recording methods are nil-receiver safe; an engine built without metrics
skips collection entirely.
*/
package monitoring
