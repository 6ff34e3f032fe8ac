package fanout

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
	"github.com/radieske/live-odds-core/pkg/contracts/topics"
)

// recorder é um transport em memória que guarda tudo o que recebe
type recorder struct {
	mu     sync.Mutex
	msgs   [][]byte
	got    chan struct{}
	closed atomic.Bool
	fail   atomic.Bool
}

func newRecorder() *recorder { return &recorder{got: make(chan struct{}, 4096)} }

func (r *recorder) WriteMessage(p []byte) error {
	if r.fail.Load() {
		return errors.New("broken pipe")
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, p)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recorder) Close() error { r.closed.Store(true); return nil }
func (r *recorder) Closed() bool { return r.closed.Load() }

func (r *recorder) envelopes(t *testing.T) []events.Envelope {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Envelope, 0, len(r.msgs))
	for _, m := range r.msgs {
		var env events.Envelope
		require.NoError(t, json.Unmarshal(m, &env))
		out = append(out, env)
	}
	return out
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d/%d", i+1, n)
		}
	}
}

// slow bloqueia toda escrita até ser fechado
type slow struct {
	release chan struct{}
	once    sync.Once
}

func (s *slow) WriteMessage([]byte) error {
	<-s.release
	return errors.New("closed")
}

func (s *slow) Close() error {
	s.once.Do(func() { close(s.release) })
	return nil
}

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

var t0 = time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

func TestPublish_RoutesByTopic(t *testing.T) {
	b := NewBroker(nil, DefaultOptions())
	defer b.Close()

	game, sport := newRecorder(), newRecorder()
	cg, cs := b.Register(game), b.Register(sport)
	require.NoError(t, b.Subscribe(cg, topics.Game("g1")))
	require.NoError(t, b.Subscribe(cs, topics.Sport("NBA")))

	n, err := b.Publish(events.Envelope{Topic: topics.Game("g1"), Type: events.MsgOddsUpdate, Data: map[string]any{"odds": 2.1}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = b.Publish(events.Envelope{Topic: topics.Game("g2"), Type: events.MsgOddsUpdate})
	require.NoError(t, err)
	assert.Zero(t, n)

	game.wait(t, 1)
	envs := game.envelopes(t)
	require.Len(t, envs, 1)
	assert.Equal(t, topics.Game("g1"), envs[0].Topic)
	assert.Equal(t, events.MsgOddsUpdate, envs[0].Type)
	assert.False(t, envs[0].Timestamp.IsZero())
	assert.Empty(t, sport.envelopes(t))
}

func TestPublish_SlowSubscriberDoesNotStallOthers(t *testing.T) {
	const (
		k     = 3
		m     = 200
		bound = 8
	)
	b := NewBroker(nil, Options{QueueSize: bound, RateLimitPerMinute: 60})
	defer b.Close()

	topic := topics.AllValueBets
	healthy := make([]*recorder, k)
	for i := range healthy {
		healthy[i] = newRecorder()
		require.NoError(t, b.Subscribe(b.Register(healthy[i]), topic))
	}
	blocked := &slow{release: make(chan struct{})}
	slowConn := b.Register(blocked)
	require.NoError(t, b.Subscribe(slowConn, topic))

	dropped := atomic.Int64{}
	b.OnDropped = func() { dropped.Add(1) }

	for i := 0; i < m; i++ {
		n, err := b.Publish(events.Envelope{Topic: topic, Type: events.MsgValueBet, Data: i})
		require.NoError(t, err)
		assert.Equal(t, k+1, n)
		assert.LessOrEqual(t, slowConn.QueueLen(), bound)
		for _, h := range healthy {
			h.wait(t, 1)
		}
	}

	for _, h := range healthy {
		envs := h.envelopes(t)
		require.Len(t, envs, m)
		for i, env := range envs {
			assert.EqualValues(t, i, env.Data, "messages arrive in publish order")
		}
		assert.Zero(t, h.QueueDropped(b))
	}
	assert.LessOrEqual(t, slowConn.QueueLen(), bound)
	assert.GreaterOrEqual(t, slowConn.Dropped(), int64(m-bound-1))
	assert.Equal(t, slowConn.Dropped(), dropped.Load())
}

// QueueDropped localiza a conexão do recorder e devolve seus descartes
func (r *recorder) QueueDropped(b *Broker) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.conns {
		if c.transport == Transport(r) {
			return c.Dropped()
		}
	}
	return -1
}

func TestHandleControl_RateLimited(t *testing.T) {
	c := &clock{now: t0}
	b := NewBroker(nil, Options{QueueSize: 64, RateLimitPerMinute: 3, Now: c.Now})
	defer b.Close()

	rec := newRecorder()
	conn := b.Register(rec)
	limited := 0
	b.OnRateLimited = func() { limited++ }

	for i := 0; i < 3; i++ {
		require.NoError(t, b.HandleControl(conn, []byte(`{"action":"ping"}`)))
	}
	err := b.HandleControl(conn, []byte(`{"action":"ping"}`))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, limited)
	assert.True(t, conn.Alive(), "limited connection stays open")

	rec.wait(t, 4)
	envs := rec.envelopes(t)
	assert.Equal(t, events.MsgPong, envs[0].Type)
	assert.Equal(t, events.MsgError, envs[3].Type)
	assert.Equal(t, CodeRateLimited, envs[3].Data.(map[string]any)["code"])

	// 60s/3 = um token a cada 20s
	c.advance(20 * time.Second)
	assert.NoError(t, b.HandleControl(conn, []byte(`{"action":"ping"}`)))
}

func TestHandleControl_SubscribeFlow(t *testing.T) {
	b := NewBroker(nil, DefaultOptions())
	defer b.Close()
	rec := newRecorder()
	conn := b.Register(rec)

	require.NoError(t, b.HandleControl(conn, []byte(`{"action":"subscribe","topics":["game:g1","bookmaker:pinnacle"]}`)))
	assert.Equal(t, 1, b.Subscribers("game:g1"))
	assert.Equal(t, 1, b.Subscribers("bookmaker:pinnacle"))
	assert.ElementsMatch(t, []string{"game:g1", "bookmaker:pinnacle"}, b.Topics(conn))

	err := b.HandleControl(conn, []byte(`{"action":"subscribe","topic":"weather:rain"}`))
	assert.ErrorIs(t, err, ErrInvalidTopic)

	require.NoError(t, b.HandleControl(conn, []byte(`{"action":"unsubscribe","topic":"game:g1"}`)))
	assert.Zero(t, b.Subscribers("game:g1"))

	assert.Error(t, b.HandleControl(conn, []byte(`{"action":"dance"}`)))
	assert.Error(t, b.HandleControl(conn, []byte(`not json`)))

	rec.wait(t, 5)
	types := []events.MessageType{}
	for _, env := range rec.envelopes(t) {
		types = append(types, env.Type)
	}
	assert.Equal(t, []events.MessageType{events.MsgAck, events.MsgError, events.MsgAck, events.MsgError, events.MsgError}, types)
}

func TestDisconnect_ReleasesSubscriptions(t *testing.T) {
	b := NewBroker(nil, DefaultOptions())
	conns := 0
	b.OnConnections = func(n int) { conns = n }

	rec := newRecorder()
	conn := b.Register(rec)
	require.NoError(t, b.Subscribe(conn, topics.Game("g1")))
	assert.Equal(t, 1, conns)

	b.Disconnect(conn)
	assert.Equal(t, 0, conns)
	assert.True(t, rec.Closed())
	assert.Zero(t, b.Subscribers(topics.Game("g1")))
	assert.ErrorIs(t, b.Subscribe(conn, topics.Game("g1")), ErrClosed)

	n, err := b.Publish(events.Envelope{Topic: topics.Game("g1"), Type: events.MsgGameEvent})
	require.NoError(t, err)
	assert.Zero(t, n)

	select {
	case <-conn.Done():
	default:
		t.Fatal("send loop not cancelled")
	}
	// segunda chamada é inofensiva
	b.Disconnect(conn)
}

func TestReap_RemovesDeadTransports(t *testing.T) {
	b := NewBroker(nil, DefaultOptions())
	defer b.Close()

	broken := newRecorder()
	broken.fail.Store(true)
	cb := b.Register(broken)
	require.NoError(t, b.Subscribe(cb, topics.AllValueBets))

	closed := newRecorder()
	cc := b.Register(closed)
	require.NoError(t, b.Subscribe(cc, topics.AllValueBets))
	closed.closed.Store(true)

	ok := newRecorder()
	require.NoError(t, b.Subscribe(b.Register(ok), topics.AllValueBets))

	_, err := b.Publish(events.Envelope{Topic: topics.AllValueBets, Type: events.MsgValueBet})
	require.NoError(t, err)
	ok.wait(t, 1)
	require.Eventually(t, func() bool { return !cb.Alive() }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, b.Reap())
	assert.Equal(t, 1, b.Connections())
	assert.Equal(t, 1, b.Subscribers(topics.AllValueBets))
}

func TestPublish_OnPublishOnlyForLocalPublishes(t *testing.T) {
	b := NewBroker(nil, DefaultOptions())
	defer b.Close()

	var forwarded []string
	b.OnPublish = func(topic string, _ []byte) { forwarded = append(forwarded, topic) }

	_, err := b.Publish(events.Envelope{Topic: topics.Game("g1"), Type: events.MsgOddsUpdate})
	require.NoError(t, err)
	b.Deliver(topics.Game("g2"), []byte(`{}`))

	assert.Equal(t, []string{topics.Game("g1")}, forwarded)
}
