package lobbygateway

import "expvar"

var (
	metricGamesCreatedTotal    = expvar.NewInt("games_created_total")
	metricTransitionsTotal     = expvar.NewInt("game_transitions_total")
	metricTransitionErrors     = expvar.NewInt("game_transition_errors_total")
	metricStaleRejectionsTotal = expvar.NewInt("game_stale_rejections_total")
	metricTimeoutsAppliedTotal = expvar.NewInt("game_timeouts_applied_total")
	metricPresenceReapedTotal  = expvar.NewInt("presence_reaped_total")
	metricPresenceSyncErrors   = expvar.NewInt("presence_sync_errors_total")
	metricFeedsClosedTotal     = expvar.NewInt("game_feeds_closed_total")

	metricSSEConnectionsActive = expvar.NewInt("game_sse_connections_active")
	metricWSConnectionsActive  = expvar.NewInt("presence_ws_connections_active")
)

// TrackSSE adjusts the live feed connection gauge.
func TrackSSE(delta int64) {
	metricSSEConnectionsActive.Add(delta)
}

func TrackWS(delta int64) {
	metricWSConnectionsActive.Add(delta)
}
