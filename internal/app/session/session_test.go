package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestRecordTurnRingBuffer(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < maxTurns+5; i++ {
		s.RecordTurn("s1", Turn{Query: fmt.Sprintf("q%d", i)})
	}

	recent := s.RecentQueries("s1", maxTurns+10)
	assert.Len(t, recent, maxTurns)
	assert.Equal(t, "q5", recent[0])
	assert.Equal(t, fmt.Sprintf("q%d", maxTurns+4), recent[len(recent)-1])
}

func TestRecentQueriesLimited(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		s.RecordTurn("s1", Turn{Query: fmt.Sprintf("q%d", i)})
	}

	recent := s.RecentQueries("s1", 3)
	assert.Equal(t, []string{"q2", "q3", "q4"}, recent)
}

func TestMessageHashWindow(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < maxMessageHashes+3; i++ {
		s.RecordMessageHash("s1", fmt.Sprintf("h%d", i))
	}

	hashes := s.MessageHashes("s1")
	assert.Len(t, hashes, maxMessageHashes)
	assert.Equal(t, "h3", hashes[0])
}

func TestScenarioCountsAccumulate(t *testing.T) {
	s := newTestStore(t)
	s.RecordTurn("s1", Turn{Query: "a", Scenario: models.ScenarioZeroNearbyExists})
	s.RecordTurn("s1", Turn{Query: "b", Scenario: models.ScenarioZeroNearbyExists})
	s.RecordTurn("s1", Turn{Query: "c", Scenario: models.ScenarioExactMatch})

	counts := s.ScenarioCounts("s1")
	assert.Equal(t, 2, counts[models.ScenarioZeroNearbyExists])
	assert.Equal(t, 1, counts[models.ScenarioExactMatch])
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	s.RecordTurn("s1", Turn{Query: "pizza"})
	s.RecordTurn("s2", Turn{Query: "sushi"})

	assert.Equal(t, []string{"pizza"}, s.RecentQueries("s1", 10))
	assert.Equal(t, []string{"sushi"}, s.RecentQueries("s2", 10))
}

func TestClearKeepsValidatedCities(t *testing.T) {
	s := newTestStore(t)
	s.RecordTurn("s1", Turn{Query: "pizza", Scenario: models.ScenarioExactMatch})
	s.RecordMessageHash("s1", "h1")
	s.SetLastIntent("s1", &models.Intent{Route: models.RouteTextSearch})
	s.AddValidatedCity("s1", "tel aviv")

	s.Clear("s1")

	assert.Empty(t, s.RecentQueries("s1", 10))
	assert.Empty(t, s.MessageHashes("s1"))
	assert.Empty(t, s.ScenarioCounts("s1"))
	assert.Nil(t, s.LastIntent("s1"))
	assert.True(t, s.IsValidatedCity("s1", "tel aviv"))
}
