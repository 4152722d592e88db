// Package membership tracks which users are live in each room. Live presence is
// independent of a room's invitation list and lasts for the process lifetime.
package membership

import (
	"cmp"
	"slices"
	"sync"
)

// Tracker holds one participant set per room. Each set is guarded by its own
// lock so rooms never contend with each other.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	mu    sync.Mutex
	seq   uint64
	users map[string]uint64 // user -> join sequence
}

func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[string]*room)}
}

func (t *Tracker) room(id string) *room {
	t.mu.RLock()
	r, ok := t.rooms[id]
	t.mu.RUnlock()
	if ok {
		return r
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok = t.rooms[id]; !ok {
		r = &room{users: make(map[string]uint64)}
		t.rooms[id] = r
	}

	return r
}

// Join adds the user to the room's live set and returns the live count.
// Joining twice has no additional effect.
func (t *Tracker) Join(roomID, userID string) int {
	r := t.room(roomID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		r.seq++
		r.users[userID] = r.seq
	}

	return len(r.users)
}

// Leave removes the user from the room's live set and returns the live count.
func (t *Tracker) Leave(roomID, userID string) int {
	r := t.room(roomID)

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, userID)
	return len(r.users)
}

// Participants returns the live users of the room in join order.
func (t *Tracker) Participants(roomID string) []string {
	r := t.room(roomID)

	r.mu.Lock()
	defer r.mu.Unlock()

	type member struct {
		id  string
		seq uint64
	}

	members := make([]member, 0, len(r.users))
	for u, s := range r.users {
		members = append(members, member{id: u, seq: s})
	}
	slices.SortFunc(members, func(a, b member) int { return cmp.Compare(a.seq, b.seq) })

	users := make([]string, len(members))
	for i, m := range members {
		users[i] = m.id
	}

	return users
}

func (t *Tracker) Count(roomID string) int {
	r := t.room(roomID)

	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}
