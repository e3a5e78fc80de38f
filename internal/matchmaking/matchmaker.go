// The matchmaking package pairs waiting players into games. Players queue
// under their chosen species and the matchmaker pairs the longest-waiting
// cat with the longest-waiting dog on a fixed tick.
package matchmaking

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/protocol"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/session"
)

// entry is one waiting player with their enqueue time, which drives both
// FIFO fairness and the wait timeout.
type entry struct {
	user       *session.User
	enqueuedAt time.Time
}

// Matchmaker owns the species wait queues and the pairing tick.
type Matchmaker struct {
	logger *logrus.Logger
	users  *session.UserRegistry
	games  *session.GameRegistry

	bounds  assets.MapBounds
	rules   game.Rules
	tick    time.Duration
	maxWait time.Duration

	mu        sync.Mutex
	queues    map[string][]*entry
	scheduler gocron.Scheduler

	// now is swappable for tests.
	now func() time.Time
}

func NewMatchmaker(
	logger *logrus.Logger,
	users *session.UserRegistry,
	games *session.GameRegistry,
	bounds assets.MapBounds,
	rules game.Rules,
	tickInterval, maxWait time.Duration,
) *Matchmaker {
	return &Matchmaker{
		logger:  logger,
		users:   users,
		games:   games,
		bounds:  bounds,
		rules:   rules,
		tick:    tickInterval,
		maxWait: maxWait,
		queues: map[string][]*entry{
			assets.SpeciesCat: nil,
			assets.SpeciesDog: nil,
		},
		now: time.Now,
	}
}

// Start begins the pairing tick.
func (m *Matchmaker) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(m.tick),
		gocron.NewTask(m.Tick),
	); err != nil {
		return err
	}
	scheduler.Start()

	m.mu.Lock()
	m.scheduler = scheduler
	m.mu.Unlock()
	return nil
}

// Stop cancels the pairing tick.
func (m *Matchmaker) Stop() {
	m.mu.Lock()
	scheduler := m.scheduler
	m.scheduler = nil
	m.mu.Unlock()

	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			m.logger.Warnf("error shutting down matchmaker scheduler: %v", err)
		}
	}
}

// Enqueue places a user in the wait queue for their species. A user already
// in the queue stays where they are; re-requesting does not reset their
// position or their wait clock.
func (m *Matchmaker) Enqueue(user *session.User) error {
	species := user.Species()
	if species != assets.SpeciesCat && species != assets.SpeciesDog {
		return protocol.NewValidationError(protocol.CodeInvalidAssetID,
			"unknown species %q", species)
	}

	if !user.SetMatchmaking(true) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[species] = append(m.queues[species], &entry{user: user, enqueuedAt: m.now()})

	m.logger.Debugf("user %s queued for matchmaking as %s", user.ID(), species)
	return nil
}

// Cancel removes a user from their wait queue, reporting whether they were
// queued.
func (m *Matchmaker) Cancel(user *session.User) bool {
	if !user.SetMatchmaking(false) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for species, queue := range m.queues {
		for i, e := range queue {
			if e.user == user {
				m.queues[species] = append(queue[:i], queue[i+1:]...)
				return true
			}
		}
	}
	return false
}

// QueueLen returns the number of waiting players for a species.
func (m *Matchmaker) QueueLen(species string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[species])
}

// Tick expires overlong waits and pairs the queues' heads. Runs on the
// scheduler but is callable directly.
func (m *Matchmaker) Tick() {
	m.expireWaits()

	for {
		pair, ok := m.dequeuePair()
		if !ok {
			return
		}
		m.createMatch(pair[0], pair[1])
	}
}

// expireWaits notifies and removes every player who has waited past the
// limit.
func (m *Matchmaker) expireWaits() {
	now := m.now()

	m.mu.Lock()
	var expired []*session.User
	for species, queue := range m.queues {
		kept := queue[:0]
		for _, e := range queue {
			if now.Sub(e.enqueuedAt) >= m.maxWait {
				expired = append(expired, e.user)
			} else {
				kept = append(kept, e)
			}
		}
		m.queues[species] = kept
	}
	m.mu.Unlock()

	for _, user := range expired {
		user.SetMatchmaking(false)
		m.logger.Infof("user %s timed out of matchmaking", user.ID())
		if err := user.Client().Send(protocol.MatchTimeoutNotificationType, &protocol.MatchTimeoutNotification{}); err != nil {
			m.logger.Debugf("error sending match timeout to %s: %v", user.ID(), err)
		}
	}
}

// dequeuePair atomically pops the head of both species queues, or reports
// that no pair is available.
func (m *Matchmaker) dequeuePair() ([2]*session.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cats := m.queues[assets.SpeciesCat]
	dogs := m.queues[assets.SpeciesDog]
	if len(cats) == 0 || len(dogs) == 0 {
		return [2]*session.User{}, false
	}

	cat, dog := cats[0].user, dogs[0].user
	m.queues[assets.SpeciesCat] = cats[1:]
	m.queues[assets.SpeciesDog] = dogs[1:]
	return [2]*session.User{cat, dog}, true
}

// createMatch builds a game for the pair and notifies both sides. A player
// who vanished between dequeue and pairing is a loud failure: the match is
// abandoned and the survivor is notified of the timeout rather than being
// silently requeued.
func (m *Matchmaker) createMatch(a, b *session.User) {
	a.SetMatchmaking(false)
	b.SetMatchmaking(false)

	for _, pair := range [][2]*session.User{{a, b}, {b, a}} {
		user, opponent := pair[0], pair[1]
		if m.users.Get(user.ID()) == nil || user.Client() == nil {
			m.logger.Errorf("user %s vanished during matchmaking; abandoning the pair", user.ID())
			m.notifyTimeout(opponent)
			return
		}
	}

	g := game.NewGame(m.logger, m.bounds, m.rules)
	m.games.Add(g)

	notify := func(user, opponent *session.User) {
		notification := &protocol.MatchNotification{
			GameID:          g.ID(),
			OpponentID:      opponent.ID(),
			OpponentSpecies: speciesCode(opponent.Species()),
		}
		if err := user.Client().Send(protocol.MatchNotificationType, notification); err != nil {
			m.logger.Warnf("error sending match notification to %s: %v", user.ID(), err)
		}
	}
	notify(a, b)
	notify(b, a)

	for _, user := range []*session.User{a, b} {
		user.SetGameID(g.ID())
		if err := g.AddPlayer(user.ID(), user.Species(), user.Client()); err != nil {
			m.logger.Errorf("error adding %s to game %s: %v", user.ID(), g.ID(), err)
		}
	}

	m.logger.Infof("matched %s (cat) with %s (dog) in game %s", a.ID(), b.ID(), g.ID())
}

func (m *Matchmaker) notifyTimeout(user *session.User) {
	if user.Client() == nil {
		return
	}
	if err := user.Client().Send(protocol.MatchTimeoutNotificationType, &protocol.MatchTimeoutNotification{}); err != nil {
		m.logger.Debugf("error sending match timeout to %s: %v", user.ID(), err)
	}
}

// speciesCode maps the asset species name onto its wire encoding.
func speciesCode(species string) uint8 {
	if species == assets.SpeciesDog {
		return protocol.SpeciesDog
	}
	return protocol.SpeciesCat
}
