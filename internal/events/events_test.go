package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestNATSEmitterPublishesOnTypedSubject(t *testing.T) {
	pub := &fakePublisher{}
	e := NewNATSEmitter(pub, "wordduel.events")
	e.Emit(context.Background(), Event{Type: MatchCompleted, GameID: "g1", At: time.Unix(0, 0), Data: map[string]any{"winnerId": "A"}})
	if len(pub.subjects) != 1 || pub.subjects[0] != "wordduel.events.match_completed" {
		t.Fatalf("unexpected subjects %v", pub.subjects)
	}
	var got Event
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.GameID != "g1" || got.Data["winnerId"] != "A" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestNATSEmitterSwallowsPublishErrors(t *testing.T) {
	e := NewNATSEmitter(&fakePublisher{err: errors.New("down")}, "")
	e.Emit(context.Background(), Event{Type: RoundCompleted, GameID: "g1"})
	if e.Subject(RoundCompleted) != "round_completed" {
		t.Fatalf("unexpected subject without prefix: %s", e.Subject(RoundCompleted))
	}
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, b, LogEmitter{}}.Emit(context.Background(), Event{Type: RematchCreated, GameID: "g1"})
	if a.Count(RematchCreated) != 1 || b.Count(RematchCreated) != 1 {
		t.Fatal("every emitter should receive the event")
	}
}
