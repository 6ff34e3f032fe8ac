package momentum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

var t0 = time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

func nflState() events.GameState {
	return events.GameState{
		GameID: "g1", Sport: events.SportNFL,
		HomeTeam: "Chiefs", AwayTeam: "Bills",
		Score: events.Score{Home: 17, Away: 14}, Period: 4, Clock: "05:00", Active: true,
	}
}

func TestClassify(t *testing.T) {
	st := nflState()
	cases := []struct {
		name  string
		raw   events.RawPlay
		typ   events.EventType
		play  string
		team  events.Side
		found bool
	}{
		{"touchdown text", events.RawPlay{Text: "Mahomes pass to Kelce for a TOUCHDOWN", Team: "home"}, events.EventScore, "touchdown", events.SideHome, true},
		{"interception by name", events.RawPlay{Text: "Pass intercepted by Bills linebacker"}, events.EventTurnover, "interception", events.SideAway, true},
		{"penalty keyword", events.RawPlay{Text: "Flag on the play: holding, 10 yard penalty"}, events.EventPenalty, "penalty", events.SideNeutral, true},
		{"timeout", events.RawPlay{Text: "Timeout Chiefs"}, events.EventTimeout, "timeout", events.SideHome, true},
		{"injury", events.RawPlay{Text: "Player down on the field", Team: "away"}, events.EventInjury, "injury", events.SideAway, true},
		{"structured type", events.RawPlay{Type: "turnover", Team: "home"}, events.EventTurnover, "turnover", events.SideHome, true},
		{"structured subtype", events.RawPlay{Type: "field_goal", Team: "away"}, events.EventScore, "field_goal", events.SideAway, true},
		{"end of game", events.RawPlay{Text: "End of Game"}, events.EventGameEnd, "game_end", events.SideNeutral, true},
		{"unclassifiable", events.RawPlay{Text: "Kickoff returned to the 25"}, "", "", "", false},
		{"empty", events.RawPlay{}, "", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := Classify("g1", tc.raw, st, t0)
			require.Equal(t, tc.found, ok)
			if !ok {
				assert.Nil(t, ev)
				return
			}
			assert.Equal(t, tc.typ, ev.Type)
			assert.Equal(t, tc.play, ev.Payload["play"])
			assert.Equal(t, tc.team, ev.Team)
			assert.Equal(t, 4, ev.Period)
			assert.Equal(t, t0, ev.Timestamp)
		})
	}
}

func TestClassify_ScoreDefaultsPoints(t *testing.T) {
	ev, ok := Classify("g1", events.RawPlay{Text: "touchdown", Team: "home"}, nflState(), t0)
	require.True(t, ok)
	assert.Equal(t, 6, ev.Points)

	nba := events.GameState{Sport: events.SportNBA, Period: 2}
	ev, ok = Classify("g2", events.RawPlay{Text: "James hits a three-pointer", Team: "away"}, nba, t0)
	require.True(t, ok)
	assert.Equal(t, events.EventScore, ev.Type)
	assert.Equal(t, 3, ev.Points)
}

func TestScoreEvents(t *testing.T) {
	prev := events.GameState{GameID: "g1", Score: events.Score{Home: 70, Away: 68}}
	next := prev
	next.Score = events.Score{Home: 70, Away: 70}

	evs := ScoreEvents(prev, next, "Tatum layup", t0)
	require.Len(t, evs, 1)
	assert.Equal(t, events.SideAway, evs[0].Team)
	assert.Equal(t, 2, evs[0].Points)
	require.NotNil(t, evs[0].NewScore)
	assert.Equal(t, 70, evs[0].NewScore.Away)

	assert.Empty(t, ScoreEvents(next, next, "", t0))

	both := next
	both.Score = events.Score{Home: 71, Away: 71}
	assert.Len(t, ScoreEvents(next, both, "", t0), 2)
}
