package stream

import (
	"strconv"
	"sync"
	"time"
)

// Event is one entry of a game feed. IDs increase per feed so clients can
// resume with Last-Event-ID.
type Event struct {
	ID       string `json:"event_id"`
	Type     string `json:"event"`
	GameID   string `json:"game_id"`
	Version  int64  `json:"version,omitempty"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

type Buffer struct {
	gameID   string
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []Event
	watchers map[chan Event]struct{}
	closed   bool
}

func NewBuffer(gameID string, max int) *Buffer {
	if max <= 0 {
		max = 256
	}
	return &Buffer{
		gameID:   gameID,
		max:      max,
		watchers: map[chan Event]struct{}{},
	}
}

func (b *Buffer) Append(eventType string, version int64, data any) Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Event{}
	}
	b.nextID++
	ev := Event{
		ID:       strconv.FormatInt(b.nextID, 10),
		Type:     eventType,
		GameID:   b.gameID,
		Version:  version,
		ServerTS: time.Now().UnixMilli(),
		Data:     data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
			// A watcher that fell behind reconnects and replays.
		}
	}
	return ev
}

// ReplayAfter returns buffered events newer than lastID; an empty or
// unparsable id replays everything still buffered.
func (b *Buffer) ReplayAfter(lastID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	last, err := strconv.ParseInt(lastID, 10, 64)
	if lastID == "" || err != nil {
		last = 0
	}
	out := make([]Event, 0, len(b.events))
	for _, ev := range b.events {
		id, _ := strconv.ParseInt(ev.ID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

func (b *Buffer) Subscribe() chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *Buffer) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}

// Hub owns one Buffer per game.
type Hub struct {
	mu      sync.Mutex
	max     int
	buffers map[string]*Buffer
}

func NewHub(maxPerGame int) *Hub {
	return &Hub{max: maxPerGame, buffers: map[string]*Buffer{}}
}

func (h *Hub) Feed(gameID string) *Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buffers[gameID]
	if !ok {
		b = NewBuffer(gameID, h.max)
		h.buffers[gameID] = b
	}
	return b
}

func (h *Hub) Publish(gameID, eventType string, version int64, data any) Event {
	return h.Feed(gameID).Append(eventType, version, data)
}

// PublishOpen appends to the game's feed only when one is already open.
func (h *Hub) PublishOpen(gameID, eventType string, version int64, data any) (Event, bool) {
	h.mu.Lock()
	b, ok := h.buffers[gameID]
	h.mu.Unlock()
	if !ok {
		return Event{}, false
	}
	return b.Append(eventType, version, data), true
}

// Finish delivers a last event to an open feed and then closes it. It
// reports whether a feed was open.
func (h *Hub) Finish(gameID, eventType string, version int64, data any) bool {
	h.mu.Lock()
	b, ok := h.buffers[gameID]
	delete(h.buffers, gameID)
	h.mu.Unlock()
	if !ok {
		return false
	}
	b.Append(eventType, version, data)
	b.Close()
	return true
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffers)
}

// Close ends the game's feed; subscribers see their channel close.
func (h *Hub) Close(gameID string) {
	h.mu.Lock()
	b, ok := h.buffers[gameID]
	delete(h.buffers, gameID)
	h.mu.Unlock()
	if ok {
		b.Close()
	}
}
