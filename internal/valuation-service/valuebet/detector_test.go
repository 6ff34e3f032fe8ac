package valuebet

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

var t0 = time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakePredictor struct {
	mu   sync.Mutex
	pred events.WinProbability
	err  error
}

func (f *fakePredictor) Predict(string) (events.WinProbability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pred, f.err
}

func (f *fakePredictor) set(home, conf float64) {
	f.mu.Lock()
	f.pred = events.WinProbability{GameID: "g1", HomeProb: home, AwayProb: 1 - home, Confidence: conf}
	f.mu.Unlock()
}

func newDetector(c *clock, pred Predictor) *Detector {
	opts := DefaultOptions()
	opts.Now = c.Now
	return NewDetector(nil, pred, nil, opts)
}

func homeQuote(book string, odds float64, at time.Time) events.OddsQuote {
	return events.OddsQuote{
		GameID: "g1", Sport: events.SportNBA, Bookmaker: book,
		BetType: events.BetMoneyline, Selection: events.SelectionHome,
		Odds: odds, Timestamp: at,
	}
}

func TestEvaluate_Accepts(t *testing.T) {
	c := &clock{now: t0}
	pred := &fakePredictor{}
	pred.set(0.6, 0.8)
	d := newDetector(c, pred)

	var detected []events.ValueBet
	d.OnDetected = func(vb events.ValueBet) { detected = append(detected, vb) }

	vb := d.Evaluate(homeQuote("b1", 2.0, t0))
	require.NotNil(t, vb)
	assert.InDelta(t, 0.1, vb.Edge, 1e-9)
	assert.InDelta(t, 1/0.6, vb.FairOdds, 1e-9)
	assert.InDelta(t, 0.025, vb.KellyFraction, 1e-9)
	assert.InDelta(t, 0.2, vb.ExpectedValue, 1e-9)
	assert.InDelta(t, 0.88, vb.Confidence, 1e-9)
	assert.Equal(t, t0.Add(15*time.Minute), vb.ExpiresAt)
	assert.True(t, vb.IsActive)
	assert.NotEmpty(t, vb.ID)
	assert.Len(t, detected, 1)

	assert.Len(t, d.Active("g1"), 1)
	assert.Len(t, d.Active(""), 1)
	assert.Empty(t, d.Active("other"))
}

func TestEvaluate_Rejections(t *testing.T) {
	c := &clock{now: t0}
	pred := &fakePredictor{}
	d := newDetector(c, pred)

	cases := []struct {
		name       string
		home, conf float64
		odds       float64
	}{
		{"negative edge", 0.4, 0.9, 2.0},
		{"edge below minimum", 0.51, 0.9, 2.0},
		{"low confidence", 0.6, 0.2, 2.0},
		{"odds below band", 0.9, 0.9, 1.3},
		{"odds above band", 0.2, 0.9, 12.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pred.set(tc.home, tc.conf)
			assert.Nil(t, d.Evaluate(homeQuote("b1", tc.odds, t0)))
		})
	}

	pred.mu.Lock()
	pred.err = errors.New("no state")
	pred.mu.Unlock()
	assert.Nil(t, d.Evaluate(homeQuote("b1", 2.0, t0)))
	assert.Empty(t, d.Active(""))
	assert.EqualValues(t, 6, d.Stats().Processed)
}

func TestEvaluate_StaleQuoteNoOpinion(t *testing.T) {
	c := &clock{now: t0.Add(5 * time.Minute)}
	pred := &fakePredictor{}
	pred.set(0.6, 0.8)
	d := newDetector(c, pred)
	stale := 0
	d.OnStale = func() { stale++ }

	assert.Nil(t, d.Evaluate(homeQuote("b1", 2.0, t0)))
	assert.Equal(t, 1, stale)
}

func TestEvaluate_ReplacesPriorForSameKey(t *testing.T) {
	c := &clock{now: t0}
	pred := &fakePredictor{}
	pred.set(0.6, 0.8)
	d := newDetector(c, pred)

	var deactivated []events.ValueBet
	d.OnDeactivated = func(vb events.ValueBet) { deactivated = append(deactivated, vb) }

	first := d.Evaluate(homeQuote("b1", 2.0, t0))
	require.NotNil(t, first)
	c.advance(time.Second)
	second := d.Evaluate(homeQuote("b1", 2.05, c.Now()))
	require.NotNil(t, second)

	active := d.Active("g1")
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	require.Len(t, deactivated, 1)
	assert.Equal(t, first.ID, deactivated[0].ID)
	assert.Equal(t, events.ReasonSuperseded, deactivated[0].Reason)
	assert.False(t, deactivated[0].IsActive)
	// o valor publicado antes não é alterado
	assert.True(t, first.IsActive)

	// outra casa coexiste
	require.NotNil(t, d.Evaluate(homeQuote("b2", 2.1, c.Now())))
	assert.Len(t, d.Active("g1"), 2)
}

func TestEvaluate_OddsMoveDeactivates(t *testing.T) {
	c := &clock{now: t0}
	pred := &fakePredictor{}
	pred.set(0.6, 0.8)
	d := newDetector(c, pred)

	var reasons []string
	d.OnDeactivated = func(vb events.ValueBet) { reasons = append(reasons, vb.Reason) }

	require.NotNil(t, d.Evaluate(homeQuote("b1", 2.0, t0)))

	// odds caem 20%: sem edge e a aposta anterior fica obsoleta
	assert.Nil(t, d.Evaluate(homeQuote("b1", 1.6, t0.Add(time.Second))))
	assert.Equal(t, []string{events.ReasonOddsMoved}, reasons)
	assert.Empty(t, d.Active("g1"))
}

func TestActive_LazyExpiry(t *testing.T) {
	c := &clock{now: t0}
	pred := &fakePredictor{}
	pred.set(0.6, 0.8)
	d := newDetector(c, pred)

	vb := d.Evaluate(homeQuote("b1", 2.0, t0))
	require.NotNil(t, vb)

	c.advance(16 * time.Minute)
	// sem sweep: ainda marcada ativa no registro, mas fora da consulta
	assert.True(t, d.get(vb.Key()).IsActive)
	assert.Empty(t, d.Active(""))

	expired := d.Sweep()
	require.Len(t, expired, 1)
	assert.Equal(t, events.ReasonExpired, expired[0].Reason)
	assert.False(t, d.get(vb.Key()).IsActive)
	assert.EqualValues(t, 1, d.Stats().Expired)
	assert.Empty(t, d.Sweep())
}

func TestSweep_ConcurrentWithEvaluate(t *testing.T) {
	c := &clock{now: t0}
	pred := &fakePredictor{}
	pred.set(0.6, 0.8)
	opts := DefaultOptions()
	opts.Now = c.Now
	opts.Lifetime = time.Millisecond
	opts.MaxQuoteAge = 0
	d := NewDetector(nil, pred, nil, opts)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d.Evaluate(homeQuote(fmt.Sprintf("b%d", i%5), 2.0+float64(w)*0.01, c.Now()))
				if i%10 == 0 {
					c.advance(time.Millisecond)
					d.Sweep()
				}
			}
		}(w)
	}
	wg.Wait()

	c.advance(time.Second)
	d.Sweep()
	assert.Empty(t, d.Active(""))

	// nenhuma chave ficou com mais de uma entrada ativa
	st := d.Stats()
	assert.Equal(t, st.Found, st.Deactivated)
	assert.Equal(t, 0, st.Active)
}
