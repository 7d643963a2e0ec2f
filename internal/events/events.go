package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Type string

const (
	RoundCompleted Type = "round_completed"
	MatchCompleted Type = "match_completed"
	RematchCreated Type = "rematch_created"
	InviteAccepted Type = "invite_accepted"
)

// Event is a fire-and-forget notification for chat and notification services.
type Event struct {
	Type   Type           `json:"type"`
	GameID string         `json:"gameId"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}

// Emitter delivers events best-effort. Implementations log failures and
// never report them to the caller.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, ev Event) {
	log.Info().
		Str("event_type", string(ev.Type)).
		Str("game_id", ev.GameID).
		Interface("data", ev.Data).
		Msg("game event")
}

// Publisher is the subset of *nats.Conn used for fan-out.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type NATSEmitter struct {
	pub    Publisher
	prefix string
}

func NewNATSEmitter(pub Publisher, subjectPrefix string) *NATSEmitter {
	return &NATSEmitter{pub: pub, prefix: subjectPrefix}
}

func (e *NATSEmitter) Subject(t Type) string {
	if e.prefix == "" {
		return string(t)
	}
	return e.prefix + "." + string(t)
}

func (e *NATSEmitter) Emit(_ context.Context, ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("encode event failed")
		return
	}
	if err := e.pub.Publish(e.Subject(ev.Type), b); err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type)).Str("game_id", ev.GameID).Msg("publish event failed")
	}
}

// Connect dials NATS with unlimited reconnects; publishes made while
// disconnected are buffered by the client.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("wordduel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats error")
		}),
	}
	return nats.Connect(url, opts...)
}

type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, e := range m {
		e.Emit(ctx, ev)
	}
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Count(t Type) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Type == t {
			n++
		}
	}
	return n
}
