package probability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

func TestTimeRemaining(t *testing.T) {
	cases := []struct {
		name string
		st   events.GameState
		want float64
	}{
		{"nfl late", events.GameState{Sport: events.SportNFL, Period: 4, Clock: "02:00", Active: true}, 2},
		{"nfl kickoff", events.GameState{Sport: events.SportNFL, Period: 1, Clock: "15:00", Active: true}, 60},
		{"nba no clock mid period", events.GameState{Sport: events.SportNBA, Period: 2, Active: true}, 30},
		{"nba short clock", events.GameState{Sport: events.SportNBA, Period: 4, Clock: "2:00", Active: true}, 2},
		{"nhl overtime", events.GameState{Sport: events.SportNHL, Period: 4, Clock: "03:00", Active: true}, 3},
		{"mlb seventh", events.GameState{Sport: events.SportMLB, Period: 7, Active: true}, 40},
		{"mlb extra innings", events.GameState{Sport: events.SportMLB, Period: 10, Active: true}, 10},
		{"unknown sport", events.GameState{Sport: "CRICKET", Period: 1, Clock: "10:30", Active: true}, 55.5},
		{"clock capped by period", events.GameState{Sport: events.SportNBA, Period: 4, Clock: "30:00", Active: true}, 12},
		{"inactive", events.GameState{Sport: events.SportNFL, Period: 2, Clock: "10:00"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, TimeRemaining(tc.st), 1e-9)
		})
	}
}

func TestParseClock(t *testing.T) {
	m, ok := parseClock("12:45")
	assert.True(t, ok)
	assert.InDelta(t, 12.75, m, 1e-9)

	for _, bad := range []string{"", "12", "a:10", "10:75", "-1:00"} {
		_, ok := parseClock(bad)
		assert.False(t, ok, bad)
	}
}

func TestFallbackAndConfidence(t *testing.T) {
	home, away := Fallback(events.GameState{Score: events.Score{Home: 10, Away: 40}})
	assert.InDelta(t, 0.1, home, 1e-9)
	assert.InDelta(t, 0.9, away, 1e-9)

	home, _ = Fallback(events.GameState{})
	assert.Equal(t, 0.5, home)

	assert.Equal(t, 0.1, confidence(events.Features{}, nil))
	f := events.Features{ScoreDiff: 30, TimeRemaining: 0, TotalDuration: 60, EventCount: 20}
	assert.InDelta(t, 1.0, confidence(f, []float64{0.9, 0.9, 0.9}), 1e-9)
}
