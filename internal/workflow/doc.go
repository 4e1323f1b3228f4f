// Package workflow advances captured recordings through the sync stage.
//
// The Manager runs a single background lane. It polls the catalogue for
// captured recordings, reclaims stale work via heartbeats, and feeds each
// recording into the registered stage handler while capturing progress and
// failure metadata. Recordings move captured -> syncing -> synced. A missing
// input ends in skipped and any other failure ends in failed; neither is
// retried automatically.
//
// When sync.auto_sync is disabled the lane only picks up recordings that
// were explicitly requested via Request, so captures can pile up until an
// operator runs "holocap recordings sync".
//
// The manager also aggregates catalogue stats, calls stage health checks,
// and refreshes the catalogue gauges after every transition.
package workflow
