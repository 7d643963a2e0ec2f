package presence

import (
	"sort"
	"sync"
	"time"

	"wordduel/internal/apperr"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Binding identifies the connection that owns a presence record.
type Binding string

type Entry struct {
	UserID   string    `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

// Snapshot is the published presence of one game. Seq increases with every
// publish so subscribers can drop out-of-order deliveries.
type Snapshot struct {
	GameID  string  `json:"gameId"`
	Seq     uint64  `json:"seq"`
	Entries []Entry `json:"entries"`
}

// Observer is told when a game's membership set changes.
type Observer interface {
	OnPresenceChanged(gameID string, snap Snapshot)
}

type ObserverFunc func(gameID string, snap Snapshot)

func (f ObserverFunc) OnPresenceChanged(gameID string, snap Snapshot) { f(gameID, snap) }

type record struct {
	binding  Binding
	lastSeen time.Time
}

type gamePresence struct {
	records  map[string]record
	snapshot Snapshot
	subs     map[int]chan Snapshot
}

type Tracker struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu        sync.Mutex
	seq       uint64
	nextSub   int
	games     map[string]*gamePresence
	observers []Observer
}

func NewTracker(clock clockwork.Clock, ttl time.Duration) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Tracker{clock: clock, ttl: ttl, games: map[string]*gamePresence{}}
}

func (t *Tracker) TTL() time.Duration {
	return t.ttl
}

func (t *Tracker) AddObserver(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Join marks the user online and returns a fresh binding. A previous binding
// for the same user is replaced and its Drop becomes a no-op.
func (t *Tracker) Join(gameID, userID string) Binding {
	b := Binding(uuid.NewString())
	t.mu.Lock()
	gp := t.gameLocked(gameID)
	_, existed := gp.records[userID]
	gp.records[userID] = record{binding: b, lastSeen: t.clock.Now()}
	snap := t.publishLocked(gameID, gp)
	observers := t.observersLocked(!existed)
	t.mu.Unlock()
	notify(observers, gameID, snap)
	return b
}

// Touch refreshes the lease held by binding.
func (t *Tracker) Touch(gameID, userID string, b Binding) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	gp, ok := t.games[gameID]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "no presence for %s in %s", userID, gameID)
	}
	rec, ok := gp.records[userID]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "no presence for %s in %s", userID, gameID)
	}
	if rec.binding != b {
		return apperr.New(apperr.ErrSuperseded, "presence binding replaced")
	}
	rec.lastSeen = t.clock.Now()
	gp.records[userID] = rec
	t.publishLocked(gameID, gp)
	return nil
}

// Leave removes the user regardless of binding.
func (t *Tracker) Leave(gameID, userID string) {
	t.remove(gameID, userID, "")
}

// Drop removes the user only while b is still the current binding.
func (t *Tracker) Drop(gameID, userID string, b Binding) {
	t.remove(gameID, userID, b)
}

func (t *Tracker) remove(gameID, userID string, b Binding) {
	t.mu.Lock()
	gp, ok := t.games[gameID]
	if !ok {
		t.mu.Unlock()
		return
	}
	rec, ok := gp.records[userID]
	if !ok || (b != "" && rec.binding != b) {
		t.mu.Unlock()
		return
	}
	delete(gp.records, userID)
	snap := t.publishLocked(gameID, gp)
	observers := t.observersLocked(true)
	t.pruneLocked(gameID, gp)
	t.mu.Unlock()
	notify(observers, gameID, snap)
}

// Reap removes every record whose lease aged past the TTL and returns how
// many were reclaimed.
func (t *Tracker) Reap(now time.Time) int {
	type changed struct {
		gameID string
		snap   Snapshot
	}
	var changes []changed
	removed := 0
	t.mu.Lock()
	for gameID, gp := range t.games {
		n := 0
		for userID, rec := range gp.records {
			if now.Sub(rec.lastSeen) > t.ttl {
				delete(gp.records, userID)
				n++
				log.Info().Str("game_id", gameID).Str("user_id", userID).Msg("presence lease reaped")
			}
		}
		if n == 0 {
			continue
		}
		removed += n
		changes = append(changes, changed{gameID: gameID, snap: t.publishLocked(gameID, gp)})
		t.pruneLocked(gameID, gp)
	}
	observers := t.observersLocked(len(changes) > 0)
	t.mu.Unlock()
	for _, c := range changes {
		notify(observers, c.gameID, c.snap)
	}
	return removed
}

// ListActive returns the latest published entries for the game.
func (t *Tracker) ListActive(gameID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	gp, ok := t.games[gameID]
	if !ok {
		return []Entry{}
	}
	return append([]Entry{}, gp.snapshot.Entries...)
}

func (t *Tracker) OnlineUsers(gameID string) []string {
	entries := t.ListActive(gameID)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func (t *Tracker) IsOnline(gameID, userID string) bool {
	for _, e := range t.ListActive(gameID) {
		if e.UserID == userID {
			return e.Online
		}
	}
	return false
}

// Subscribe delivers the current snapshot immediately and then the latest
// snapshot after every change. Slow readers only ever miss superseded ones.
func (t *Tracker) Subscribe(gameID string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	t.mu.Lock()
	gp := t.gameLocked(gameID)
	id := t.nextSub
	t.nextSub++
	gp.subs[id] = ch
	ch <- cloneSnapshot(gp.snapshot)
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if gp, ok := t.games[gameID]; ok {
				delete(gp.subs, id)
				t.pruneLocked(gameID, gp)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (t *Tracker) gameLocked(gameID string) *gamePresence {
	gp, ok := t.games[gameID]
	if !ok {
		gp = &gamePresence{
			records:  map[string]record{},
			snapshot: Snapshot{GameID: gameID, Entries: []Entry{}},
			subs:     map[int]chan Snapshot{},
		}
		t.games[gameID] = gp
	}
	return gp
}

func (t *Tracker) pruneLocked(gameID string, gp *gamePresence) {
	if len(gp.records) == 0 && len(gp.subs) == 0 {
		delete(t.games, gameID)
	}
}

func (t *Tracker) observersLocked(membershipChanged bool) []Observer {
	if !membershipChanged {
		return nil
	}
	return append([]Observer(nil), t.observers...)
}

func (t *Tracker) publishLocked(gameID string, gp *gamePresence) Snapshot {
	t.seq++
	entries := make([]Entry, 0, len(gp.records))
	for userID, rec := range gp.records {
		entries = append(entries, Entry{UserID: userID, Online: true, LastSeen: rec.lastSeen})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	gp.snapshot = Snapshot{GameID: gameID, Seq: t.seq, Entries: entries}
	for _, ch := range gp.subs {
		offerLatest(ch, cloneSnapshot(gp.snapshot))
	}
	return cloneSnapshot(gp.snapshot)
}

// offerLatest replaces any undelivered snapshot with snap.
func offerLatest(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Entries = append([]Entry{}, s.Entries...)
	return s
}

func notify(observers []Observer, gameID string, snap Snapshot) {
	for _, o := range observers {
		o.OnPresenceChanged(gameID, snap)
	}
}
