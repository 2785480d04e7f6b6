package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

const (
	maxSessions      = 10000
	maxTurns         = 20
	maxMessageHashes = 5
)

// Turn is one completed exchange in a session.
type Turn struct {
	Query     string
	Route     models.Route
	Scenario  models.Scenario
	RequestID string
	At        time.Time
}

// Context is the per-session conversation state. All mutation goes through
// the Store so the LRU sees every touch.
type Context struct {
	mu sync.Mutex

	turns          []Turn
	messageHashes  []string
	scenarioCounts map[models.Scenario]int
	lastIntent     *models.Intent
	// validatedCities survive an explicit reset: geocode-confirmed city names
	// are facts about the world, not about the conversation.
	validatedCities map[string]bool
}

func newContext() *Context {
	return &Context{
		scenarioCounts:  make(map[models.Scenario]int),
		validatedCities: make(map[string]bool),
	}
}

// Store holds session contexts with a bounded LRU so abandoned sessions age
// out under memory pressure instead of accumulating.
type Store struct {
	sessions *lru.Cache[string, *Context]
	logger   *zap.Logger
}

func NewStore(logger *zap.Logger) (*Store, error) {
	cache, err := lru.New[string, *Context](maxSessions)
	if err != nil {
		return nil, err
	}
	return &Store{sessions: cache, logger: logger}, nil
}

func (s *Store) get(sessionID string) *Context {
	if ctx, ok := s.sessions.Get(sessionID); ok {
		return ctx
	}
	ctx := newContext()
	s.sessions.Add(sessionID, ctx)
	return ctx
}

// RecordTurn appends a completed exchange, trimming to the ring size.
func (s *Store) RecordTurn(sessionID string, turn Turn) {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.turns = append(ctx.turns, turn)
	if len(ctx.turns) > maxTurns {
		ctx.turns = ctx.turns[len(ctx.turns)-maxTurns:]
	}
	if turn.Scenario != "" {
		ctx.scenarioCounts[turn.Scenario]++
	}
}

// RecentQueries returns up to n most recent queries, oldest first.
func (s *Store) RecentQueries(sessionID string, n int) []string {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	start := len(ctx.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(ctx.turns)-start)
	for _, t := range ctx.turns[start:] {
		out = append(out, t.Query)
	}
	return out
}

// RecordMessageHash keeps the last few assistant message hashes for the
// wording-variation signal.
func (s *Store) RecordMessageHash(sessionID, hash string) {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.messageHashes = append(ctx.messageHashes, hash)
	if len(ctx.messageHashes) > maxMessageHashes {
		ctx.messageHashes = ctx.messageHashes[len(ctx.messageHashes)-maxMessageHashes:]
	}
}

func (s *Store) MessageHashes(sessionID string) []string {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	out := make([]string, len(ctx.messageHashes))
	copy(out, ctx.messageHashes)
	return out
}

// ScenarioCounts snapshots the per-scenario history for repeat escalation.
func (s *Store) ScenarioCounts(sessionID string) map[models.Scenario]int {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	out := make(map[models.Scenario]int, len(ctx.scenarioCounts))
	for k, v := range ctx.scenarioCounts {
		out[k] = v
	}
	return out
}

func (s *Store) SetLastIntent(sessionID string, intent *models.Intent) {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.lastIntent = intent
}

func (s *Store) LastIntent(sessionID string) *models.Intent {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.lastIntent
}

// LastRequestID returns the request id of the most recent completed turn.
func (s *Store) LastRequestID(sessionID string) string {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if len(ctx.turns) == 0 {
		return ""
	}
	return ctx.turns[len(ctx.turns)-1].RequestID
}

// AddValidatedCity records a geocode-confirmed city name.
func (s *Store) AddValidatedCity(sessionID, city string) {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.validatedCities[city] = true
}

func (s *Store) IsValidatedCity(sessionID, city string) bool {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.validatedCities[city]
}

// Clear resets the conversation. Validated cities are kept.
func (s *Store) Clear(sessionID string) {
	ctx := s.get(sessionID)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.turns = nil
	ctx.messageHashes = nil
	ctx.scenarioCounts = make(map[models.Scenario]int)
	ctx.lastIntent = nil
	s.logger.Debug("session cleared", zap.String("session_id", sessionID))
}
