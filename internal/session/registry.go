// The session package owns the two authoritative registries: connected users
// by identity and live games by match id. Additions happen from accept/auth
// callbacks and removals from disconnect callbacks, so every operation is
// safe under concurrent access.
package session

import (
	"sync"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
)

// UserRegistry maps identity -> *User for every authenticated connection.
type UserRegistry struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewUserRegistry() *UserRegistry {
	return &UserRegistry{users: make(map[string]*User)}
}

// Add creates and inserts a User for the identity. If the identity is
// already present (reconnect), the existing User is rebound to the new
// transport handle and returned.
func (r *UserRegistry) Add(id string, c *client.Client) *User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[id]; ok {
		existing.BindClient(c)
		return existing
	}

	user := NewUser(id, c)
	r.users[id] = user
	return user
}

// Remove deletes the identity from the registry, reporting whether anything
// was removed.
func (r *UserRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return false
	}
	delete(r.users, id)
	return true
}

// Get returns the User for an identity, or nil if absent.
func (r *UserRegistry) Get(id string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[id]
}

// FindByClient returns the User currently bound to the given transport
// handle, or nil. A linear scan is fine at the connection counts this server
// handles.
func (r *UserRegistry) FindByClient(c *client.Client) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Client() == c {
			return user
		}
	}
	return nil
}

func (r *UserRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// GameRegistry maps match id -> *game.Game for every live match. Games are
// created by the matchmaker and destroyed explicitly at match teardown.
type GameRegistry struct {
	mu    sync.RWMutex
	games map[string]*game.Game
}

func NewGameRegistry() *GameRegistry {
	return &GameRegistry{games: make(map[string]*game.Game)}
}

func (r *GameRegistry) Add(g *game.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.ID()] = g
}

func (r *GameRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[id]; !ok {
		return false
	}
	delete(r.games, id)
	return true
}

func (r *GameRegistry) Get(id string) *game.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.games[id]
}

// All returns a snapshot of every live game, primarily for shutdown.
func (r *GameRegistry) All() []*game.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]*game.Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	return games
}

func (r *GameRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
