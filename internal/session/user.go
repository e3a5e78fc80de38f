package session

import (
	"sync"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/client"
)

// User is the authoritative per-connection state for an authenticated
// player. The transport handle is rebindable: a user may be briefly
// disconnected and later reattached to a fresh connection.
type User struct {
	id string

	mu            sync.Mutex
	client        *client.Client
	gameID        string
	species       string
	inMatchmaking bool
}

func NewUser(id string, c *client.Client) *User {
	return &User{id: id, client: c}
}

func (u *User) ID() string { return u.id }

func (u *User) Client() *client.Client {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.client
}

// BindClient attaches a (possibly new) transport handle to the user.
func (u *User) BindClient(c *client.Client) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.client = c
}

func (u *User) GameID() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.gameID
}

func (u *User) SetGameID(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.gameID = id
}

func (u *User) Species() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.species
}

func (u *User) SetSpecies(species string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.species = species
}

func (u *User) InMatchmaking() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.inMatchmaking
}

// SetMatchmaking flips the matchmaking flag, returning false if it already
// held the requested value. This keeps double enqueues idempotent.
func (u *User) SetMatchmaking(value bool) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inMatchmaking == value {
		return false
	}
	u.inMatchmaking = value
	return true
}
