package httptransport

import (
	"net/http"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/lobbygateway"
	"wordduel/internal/match"

	"github.com/go-chi/chi/v5"
)

type GameHandlers struct {
	coord *lobbygateway.Coordinator
}

func NewGameHandlers(coord *lobbygateway.Coordinator) *GameHandlers {
	return &GameHandlers{coord: coord}
}

type createGameBody struct {
	GameType        match.GameType   `json:"gameType"`
	MultiplayerMode match.Mode       `json:"multiplayerMode"`
	Visibility      match.Visibility `json:"visibility"`
	Passcode        string           `json:"passcode"`
	WordLength      int              `json:"wordLength"`
	MaxAttempts     int              `json:"maxAttempts"`
	RoundsSetting   int              `json:"roundsSetting"`
	MaxWins         int              `json:"maxWins"`
	MaxDraws        int              `json:"maxDraws"`
	TurnTimeMS      int64            `json:"turnTimeMs"`
	MatchTimeMS     int64            `json:"matchTimeMs"`
	Ranked          bool             `json:"ranked"`
	Alias           string           `json:"alias"`
}

type joinBody struct {
	Alias           string `json:"alias"`
	Passcode        string `json:"passcode"`
	AccessToken     string `json:"accessToken"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

type versionBody struct {
	ExpectedVersion int64 `json:"expectedVersion"`
}

type guessBody struct {
	Word            string `json:"word"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

type accessBody struct {
	Passcode    string `json:"passcode"`
	AccessToken string `json:"accessToken"`
}

type guessResponse struct {
	Game          match.View         `json:"game"`
	RoundEnded    bool               `json:"roundEnded"`
	Round         *match.RoundResult `json:"round,omitempty"`
	MatchOver     bool               `json:"matchOver"`
	MatchWinnerID string             `json:"matchWinnerId,omitempty"`
	Completed     bool               `json:"completed"`
}

type voteResponse struct {
	Game          match.View     `json:"game"`
	Kind          match.VoteKind `json:"kind"`
	Votes         []string       `json:"votes"`
	QuorumReached bool           `json:"quorumReached"`
	Effect        string         `json:"effect,omitempty"`
	RematchGameID string         `json:"rematchGameId,omitempty"`
}

func (h *GameHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createGameBody
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		turnTime, err := millis("turnTimeMs", body.TurnTimeMS, match.MaxTurnTime)
		if err != nil {
			WriteError(w, err)
			return
		}
		matchTime, err := millis("matchTimeMs", body.MatchTimeMS, match.MaxMatchTime)
		if err != nil {
			WriteError(w, err)
			return
		}
		who := mustIdentity(r)
		g, err := h.coord.CreateGame(r.Context(), who, lobbygateway.CreateGameRequest{
			GameType:      body.GameType,
			Mode:          body.MultiplayerMode,
			Visibility:    body.Visibility,
			Passcode:      body.Passcode,
			WordLength:    body.WordLength,
			MaxAttempts:   body.MaxAttempts,
			RoundsSetting: body.RoundsSetting,
			MaxWins:       body.MaxWins,
			MaxDraws:      body.MaxDraws,
			TurnTime:      turnTime,
			MatchTime:     matchTime,
			Ranked:        body.Ranked,
			Alias:         body.Alias,
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g.ViewFor(who.UID))
	}
}

func (h *GameHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := h.coord.GetGame(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g.ViewFor(mustIdentity(r).UID))
	}
}

func (h *GameHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body joinBody
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		who := mustIdentity(r)
		g, err := h.coord.JoinGame(r.Context(), who, chi.URLParam(r, "game_id"), lobbygateway.JoinGameRequest{
			Alias:           body.Alias,
			Passcode:        body.Passcode,
			AccessToken:     body.AccessToken,
			ExpectedVersion: body.ExpectedVersion,
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g.ViewFor(who.UID))
	}
}

func (h *GameHandlers) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body versionBody
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		who := mustIdentity(r)
		g, err := h.coord.StartGame(r.Context(), who, chi.URLParam(r, "game_id"), body.ExpectedVersion)
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g.ViewFor(who.UID))
	}
}

func (h *GameHandlers) Guess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricGuessSubmitTotal.Add(1)
		var body guessBody
		if err := decodeBody(r, &body); err != nil {
			metricGuessSubmitErrors.Add(1)
			WriteError(w, err)
			return
		}
		who := mustIdentity(r)
		g, out, err := h.coord.SubmitGuess(r.Context(), who, chi.URLParam(r, "game_id"), body.Word, body.ExpectedVersion)
		if err != nil {
			metricGuessSubmitErrors.Add(1)
			WriteError(w, err)
			return
		}
		res := guessResponse{
			Game:          g.ViewFor(who.UID),
			RoundEnded:    out.RoundEnded,
			MatchOver:     out.MatchOver,
			MatchWinnerID: out.MatchWinnerID,
			Completed:     out.Completed,
		}
		if out.RoundEnded {
			round := out.Round
			res.Round = &round
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *GameHandlers) Vote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricVoteTotal.Add(1)
		kind, ok := match.ParseVoteKind(chi.URLParam(r, "kind"))
		if !ok {
			metricVoteErrors.Add(1)
			WriteError(w, apperr.New(apperr.ErrInvalidRequest, "unknown vote kind %q", chi.URLParam(r, "kind")))
			return
		}
		var body versionBody
		if err := decodeBody(r, &body); err != nil {
			metricVoteErrors.Add(1)
			WriteError(w, err)
			return
		}
		who := mustIdentity(r)
		g, res, err := h.coord.CastVote(r.Context(), who, chi.URLParam(r, "game_id"), kind, body.ExpectedVersion)
		if err != nil {
			metricVoteErrors.Add(1)
			WriteError(w, err)
			return
		}
		out := voteResponse{
			Game:          g.ViewFor(who.UID),
			Kind:          res.Kind,
			Votes:         res.Votes,
			QuorumReached: res.QuorumReached,
			Effect:        res.Effect,
		}
		if res.Spawned != nil {
			out.RematchGameID = res.Spawned.ID
		}
		if out.Votes == nil {
			out.Votes = []string{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Access validates a passcode or previously issued token and returns a token
// the client can cache for later joins.
func (h *GameHandlers) Access() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accessBody
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		grant, err := h.coord.CheckAccess(r.Context(), mustIdentity(r), chi.URLParam(r, "game_id"), body.Passcode, body.AccessToken)
		if err != nil {
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, grant)
	}
}

// millis converts a client millisecond field, rejecting values outside
// [0, max] before the multiplication can overflow.
func millis(field string, ms int64, limit time.Duration) (time.Duration, error) {
	if ms < 0 || ms > limit.Milliseconds() {
		return 0, apperr.New(apperr.ErrInvalidRequest, "%s must be between 0 and %d", field, limit.Milliseconds())
	}
	return time.Duration(ms) * time.Millisecond, nil
}
