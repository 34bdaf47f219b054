package api

import (
	"crypto/subtle"
	"sync"
	"time"

	"tycoon/internal/game"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// session is one live game. mu serializes turns; the cache only hands out
// the pointer.
type session struct {
	ID    string
	token string

	mu       sync.Mutex
	game     *game.Game
	last     *TurnResult
	lastKey  string
	loadedAs string
}

func newSession(g *game.Game) *session {
	return &session{
		ID:    uuid.NewString(),
		token: uuid.NewString(),
		game:  g,
	}
}

func (s *session) authorized(token string) bool {
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}

type sessionStore struct {
	items *cache.Cache
	ttl   time.Duration
	max   int
}

func newSessionStore(ttl time.Duration, max int) *sessionStore {
	return &sessionStore{
		items: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		max:   max,
	}
}

// add registers s, failing once max live sessions is reached.
func (st *sessionStore) add(s *session) bool {
	if st.max > 0 && st.items.ItemCount() >= st.max {
		st.items.DeleteExpired()
		if st.items.ItemCount() >= st.max {
			return false
		}
	}
	st.items.Set(s.ID, s, cache.DefaultExpiration)
	return true
}

// get returns the session and slides its expiry forward.
func (st *sessionStore) get(id string) (*session, bool) {
	v, ok := st.items.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*session)
	st.items.Set(id, s, cache.DefaultExpiration)
	return s, true
}

func (st *sessionStore) remove(id string) {
	st.items.Delete(id)
}

func (st *sessionStore) count() int {
	return st.items.ItemCount()
}
