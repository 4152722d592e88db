package gateway

import "sync"

type presenceKey struct {
	room string
	user string
}

// presence counts the connections a user has in each room. Membership is only
// released when the last of them leaves.
type presence struct {
	mu         sync.Mutex
	conns      map[presenceKey]map[uint64]struct{}
	membership Membership
}

func newPresence(m Membership) *presence {
	return &presence{
		conns:      make(map[presenceKey]map[uint64]struct{}),
		membership: m,
	}
}

// join records the connection in the room and returns the live participant count.
func (p *presence) join(roomID, userID string, conn uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := presenceKey{room: roomID, user: userID}
	if p.conns[k] == nil {
		p.conns[k] = make(map[uint64]struct{})
	}
	p.conns[k][conn] = struct{}{}

	return p.membership.Join(roomID, userID)
}

// leave drops the connection. last reports whether it was the user's final
// connection in the room, in which case the user left and n is the new count.
func (p *presence) leave(roomID, userID string, conn uint64) (n int, last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := presenceKey{room: roomID, user: userID}
	delete(p.conns[k], conn)
	if len(p.conns[k]) > 0 {
		return 0, false
	}

	delete(p.conns, k)
	return p.membership.Leave(roomID, userID), true
}
