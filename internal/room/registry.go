package room

import (
	"math/rand"
	"sync"

	"github.com/shotgun-games/draftroom/internal/catalog"
)

// Alphabet for room codes; ambiguous characters (0/O, 1/I) are left out.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 5

// Registry owns every live Room. It is created at process start and is
// the only place rooms are created, looked up, or destroyed. No room
// lock is ever acquired while the registry lock is held; the reverse
// order (room lock, then registry lock during teardown) is allowed.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create allocates a room with a fresh unique code, seeded with its own
// catalog copy and the caller as sole member and host.
func (g *Registry) Create(host *Member, items []catalog.Item) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	code := randomCode(codeLength)
	for g.rooms[code] != nil {
		code = randomCode(codeLength)
	}
	r := newRoom(code, host, items)
	g.rooms[code] = r
	return r
}

func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

func (g *Registry) Delete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, id)
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Snapshot returns the current rooms. Callers lock each room before
// touching its state; a room may have been deleted by then, which its
// deleted flag reveals.
func (g *Registry) Snapshot() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	return out
}

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
