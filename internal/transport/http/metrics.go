package httptransport

import "expvar"

var (
	metricGuessSubmitTotal  = expvar.NewInt("guess_submit_total")
	metricGuessSubmitErrors = expvar.NewInt("guess_submit_errors_total")

	metricVoteTotal  = expvar.NewInt("vote_total")
	metricVoteErrors = expvar.NewInt("vote_errors_total")

	metricSessionAcquireTotal  = expvar.NewInt("session_acquire_total")
	metricSessionAcquireErrors = expvar.NewInt("session_acquire_errors_total")
	metricSessionSuperseded    = expvar.NewInt("session_superseded_total")

	metricSSEConnectionsTotal = expvar.NewInt("game_sse_connections_total")
	metricWSConnectionsTotal  = expvar.NewInt("presence_ws_connections_total")
)
