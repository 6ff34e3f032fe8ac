package oddstracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

var t0 = time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

func quote(book string, odds float64, at time.Duration) events.OddsQuote {
	return events.OddsQuote{
		GameID:    "g1",
		Bookmaker: book,
		BetType:   events.BetMoneyline,
		Selection: events.SelectionHome,
		Odds:      odds,
		Timestamp: t0.Add(at),
	}
}

func TestRecord_MovementOnlyAboveThreshold(t *testing.T) {
	tr := New(nil, DefaultOptions())

	var movements []*events.LineMovement
	for i, o := range []float64{2.00, 2.00, 2.20} {
		mv, err := tr.Record(quote("b1", o, time.Duration(i)*time.Second))
		require.NoError(t, err)
		movements = append(movements, mv)
	}

	assert.Nil(t, movements[0], "first quote has nothing to compare")
	assert.Nil(t, movements[1], "0% change is not a movement")
	require.NotNil(t, movements[2])
	assert.Equal(t, events.DirectionUp, movements[2].Direction)
	assert.InDelta(t, 0.20, movements[2].Delta, 1e-9)
	assert.InDelta(t, 1.0, movements[2].Significance, 1e-9)
}

func TestRecord_SmallChangeBelowThreshold(t *testing.T) {
	tr := New(nil, DefaultOptions())
	_, _ = tr.Record(quote("b1", 2.00, 0))

	// 0.1% -> significância 0.01
	mv, err := tr.Record(quote("b1", 2.002, time.Second))
	require.NoError(t, err)
	assert.Nil(t, mv)

	mv, err = tr.Record(quote("b1", 1.90, 2*time.Second))
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.Equal(t, events.DirectionDown, mv.Direction)
}

func TestRecord_Rejections(t *testing.T) {
	tr := New(nil, DefaultOptions())

	_, err := tr.Record(quote("b1", 1.0, 0))
	assert.ErrorIs(t, err, ErrInvalidQuote)

	bad := quote("b1", 2.0, 0)
	bad.BetType = "parlay"
	_, err = tr.Record(bad)
	assert.ErrorIs(t, err, ErrInvalidQuote)

	_, err = tr.Record(quote("b1", 2.0, time.Minute))
	require.NoError(t, err)
	_, err = tr.Record(quote("b1", 2.5, 0))
	assert.ErrorIs(t, err, ErrStaleQuote)

	latest, ok := tr.Latest(quote("b1", 0, 0).Key())
	require.True(t, ok)
	assert.Equal(t, 2.0, latest.Odds)
}

func TestRing_KeepsOnlyCapacity(t *testing.T) {
	tr := New(nil, Options{Capacity: 5, MovementThreshold: 0.02})
	for i := 0; i < 12; i++ {
		_, err := tr.Record(quote("b1", 2.0+float64(i)*0.1, time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	hist := tr.History(quote("b1", 0, 0).Key())
	require.Len(t, hist, 5)
	assert.InDelta(t, 2.7, hist[0].Odds, 1e-9)
	assert.InDelta(t, 3.1, hist[4].Odds, 1e-9)
}

func TestTrend(t *testing.T) {
	tr := New(nil, DefaultOptions())
	key := quote("b1", 0, 0).Key()

	assert.Equal(t, TrendInsufficientData, tr.Trend(key).Direction)

	seq := []float64{1.80, 1.95, 2.10, 1.90, 2.30, 2.45}
	for i, o := range seq {
		_, err := tr.Record(quote("b1", o, time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	got := tr.Trend(key)
	assert.Equal(t, len(seq), got.DataPoints)
	assert.Equal(t, TrendIncreasing, got.Direction)
	assert.Greater(t, got.Slope, 0.0)
	assert.Greater(t, got.Volatility, 0.0)
	assert.Equal(t, 2.45, got.Current)
	for _, o := range seq {
		assert.LessOrEqual(t, got.MinOdds, o)
		assert.GreaterOrEqual(t, got.MaxOdds, o)
	}
}

func TestBestOddsAndQuotes(t *testing.T) {
	tr := New(nil, DefaultOptions())
	_, _ = tr.Record(quote("b1", 2.10, 0))
	_, _ = tr.Record(quote("b2", 2.25, 0))
	_, _ = tr.Record(quote("b3", 2.05, 0))
	_, _ = tr.Record(quote("b2", 2.15, time.Second)) // b2 recua

	best, ok := tr.BestOdds("g1", events.BetMoneyline, events.SelectionHome)
	require.True(t, ok)
	assert.Equal(t, "b2", best.Bookmaker)
	assert.Equal(t, 2.15, best.Odds)

	away := quote("b1", 1.7, 0)
	away.Selection = events.SelectionAway
	_, _ = tr.Record(away)

	assert.Len(t, tr.Quotes("g1", events.BetMoneyline), 4)
	assert.Empty(t, tr.Quotes("g1", events.BetTotal))

	_, ok = tr.BestOdds("g1", events.BetSpread, events.SelectionHome)
	assert.False(t, ok)

	tr.Evict("g1")
	assert.Empty(t, tr.Quotes("g1", ""))
}
