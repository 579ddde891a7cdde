// Package world holds the client's mirror of the server state: the
// ownership grid, the player set, the terrain colour map and the connection
// status, published through a Store as immutable snapshots.
package world

import (
	"sync"
	"sync/atomic"
)

// Field is a bit set naming snapshot fields.
type Field uint8

const (
	FieldGrid Field = 1 << iota
	FieldPlayers
	FieldTerrain
	FieldConn
)

// Has reports whether any bit of o is set in f.
func (f Field) Has(o Field) bool { return f&o != 0 }

func (f Field) String() string {
	if f == 0 {
		return "none"
	}
	s := ""
	for _, n := range []struct {
		f    Field
		name string
	}{{FieldGrid, "grid"}, {FieldPlayers, "players"}, {FieldTerrain, "terrain"}, {FieldConn, "conn"}} {
		if f.Has(n.f) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

// Update is a partial commit. Nil fields are left untouched.
type Update struct {
	Grid    *Grid
	Players *Players
	Terrain *TerrainMap
	Conn    *ConnState
}

// Fields reports which fields the update carries.
func (u Update) Fields() Field {
	var f Field
	if u.Grid != nil {
		f |= FieldGrid
	}
	if u.Players != nil {
		f |= FieldPlayers
	}
	if u.Terrain != nil {
		f |= FieldTerrain
	}
	if u.Conn != nil {
		f |= FieldConn
	}
	return f
}

// Snapshot is an immutable, internally consistent view of the store.
// Readers must not modify it.
type Snapshot struct {
	Grid    *Grid
	Players *Players
	Terrain *TerrainMap
	Conn    ConnState
	// Version increases by one per commit.
	Version uint64
}

// Listener is called after each commit with the new snapshot and the set of
// fields the commit replaced. Listeners run synchronously on the committing
// goroutine and must not call Commit.
type Listener func(snap *Snapshot, changed Field)

// Store is the single source of truth for the mirrored state.
type Store struct {
	commitMu sync.Mutex
	cur      atomic.Pointer[Snapshot]

	subMu  sync.Mutex
	subs   []*Subscription
	nextID uint64
}

// NewStore returns a store holding an empty snapshot with an idle
// connection.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&Snapshot{})
	return s
}

// Snapshot returns the current snapshot. It never blocks on commits.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Commit replaces the fields present in u, publishes the new snapshot and
// notifies subscribers in subscription order. An empty update is a no-op.
func (s *Store) Commit(u Update) *Snapshot {
	changed := u.Fields()
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	prev := s.cur.Load()
	if changed == 0 {
		return prev
	}
	next := *prev
	if u.Grid != nil {
		next.Grid = u.Grid
	}
	if u.Players != nil {
		next.Players = u.Players
	}
	if u.Terrain != nil {
		next.Terrain = u.Terrain
	}
	if u.Conn != nil {
		next.Conn = *u.Conn
	}
	next.Version = prev.Version + 1
	s.cur.Store(&next)

	s.subMu.Lock()
	subs := append([]*Subscription(nil), s.subs...)
	s.subMu.Unlock()
	for _, sub := range subs {
		if sub.cancelled.Load() {
			continue
		}
		sub.fn(&next, changed)
	}
	return &next
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	store     *Store
	id        uint64
	fn        Listener
	cancelled atomic.Bool
}

// Subscribe registers fn for future commits.
func (s *Store) Subscribe(fn Listener) *Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	sub := &Subscription{store: s, id: s.nextID, fn: fn}
	s.subs = append(s.subs, sub)
	return sub
}

// Cancel stops further notifications. Calling it more than once is safe.
func (sub *Subscription) Cancel() {
	if sub == nil || sub.cancelled.Swap(true) {
		return
	}
	s := sub.store
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, o := range s.subs {
		if o.id == sub.id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			break
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}
