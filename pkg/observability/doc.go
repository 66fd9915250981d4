/*
Package observability turns wizard lifecycle hooks into logs and Prometheus
metrics.

Hook sets are plain domain.LifecycleHooks values, so several of them (metrics,
audit logging, a server's event stream) can be combined with Combine and
passed to wizard.WithLifecycleHooks as one.
*/
package observability
