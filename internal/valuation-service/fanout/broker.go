// Package fanout roteia envelopes por tópico para as conexões assinantes.
// Publicar nunca bloqueia: cada conexão tem fila própria e loop de envio
// dedicado.
package fanout

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
	"github.com/radieske/live-odds-core/pkg/contracts/topics"
)

var (
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrInvalidTopic = errors.New("invalid topic")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	QueueSize          int // fila de saída por conexão
	RateLimitPerMinute int // mensagens de controle por conexão
	Now                func() time.Time
}

func DefaultOptions() Options {
	return Options{QueueSize: 256, RateLimitPerMinute: 60, Now: time.Now}
}

type Broker struct {
	log  *zap.Logger
	opts Options

	mu     sync.RWMutex
	topics map[string]map[*Conn]struct{}
	conns  map[string]*Conn

	// métricas e integração
	OnEnqueued    func(n int)
	OnDropped     func()
	OnRateLimited func()
	OnConnections func(n int)
	// OnPublish recebe toda publicação local (ex.: relay entre instâncias)
	OnPublish func(topic string, payload []byte)
}

func NewBroker(log *zap.Logger, opts Options) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.QueueSize < 1 {
		opts.QueueSize = def.QueueSize
	}
	if opts.RateLimitPerMinute < 1 {
		opts.RateLimitPerMinute = def.RateLimitPerMinute
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Broker{
		log:    log,
		opts:   opts,
		topics: make(map[string]map[*Conn]struct{}),
		conns:  make(map[string]*Conn),
	}
}

// Register cria a conexão e inicia seu loop de envio
func (b *Broker) Register(t Transport) *Conn {
	per := time.Minute / time.Duration(b.opts.RateLimitPerMinute)
	limiter := rate.NewLimiter(rate.Every(per), b.opts.RateLimitPerMinute)
	c := newConn(uuid.NewString(), t, b.opts.QueueSize, limiter, b.opts.Now())

	b.mu.Lock()
	b.conns[c.ID] = c
	n := len(b.conns)
	b.mu.Unlock()

	go c.sendLoop()

	b.log.Debug("connection registered", zap.String("conn_id", c.ID))
	b.reportConnections(n)
	return c
}

func (b *Broker) reportConnections(n int) {
	if b.OnConnections != nil {
		b.OnConnections(n)
	}
}

// Subscribe inclui a conexão no tópico
func (b *Broker) Subscribe(c *Conn, topic string) error {
	if !topics.Valid(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if !c.Alive() {
		return ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[c.ID]; !ok {
		return ErrClosed
	}
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[*Conn]struct{})
		b.topics[topic] = set
	}
	set[c] = struct{}{}
	c.topics[topic] = struct{}{}
	return nil
}

// Unsubscribe remove a conexão do tópico
func (b *Broker) Unsubscribe(c *Conn, topic string) error {
	if !topics.Valid(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c, topic)
	return nil
}

func (b *Broker) removeLocked(c *Conn, topic string) {
	if set, ok := b.topics[topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(b.topics, topic)
		}
	}
	delete(c.topics, topic)
}

// Disconnect libera as assinaturas e encerra o loop de envio.
// Mensagens ainda na fila são descartadas.
func (b *Broker) Disconnect(c *Conn) {
	b.mu.Lock()
	for topic := range c.topics {
		b.removeLocked(c, topic)
	}
	_, known := b.conns[c.ID]
	delete(b.conns, c.ID)
	n := len(b.conns)
	b.mu.Unlock()

	c.close()
	if known {
		b.log.Debug("connection closed",
			zap.String("conn_id", c.ID),
			zap.Int64("sent", c.Sent()),
			zap.Int64("dropped", c.Dropped()),
		)
		b.reportConnections(n)
	}
}

// Publish serializa o envelope uma vez e enfileira para os assinantes do tópico.
// Retorna quantas conexões receberam a mensagem na fila.
func (b *Broker) Publish(env events.Envelope) (int, error) {
	if env.Timestamp.IsZero() {
		env.Timestamp = b.opts.Now()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("marshal envelope: %w", err)
	}
	n := b.Deliver(env.Topic, payload)
	if b.OnPublish != nil {
		b.OnPublish(env.Topic, payload)
	}
	return n, nil
}

// Deliver enfileira um envelope já serializado apenas para os assinantes locais
func (b *Broker) Deliver(topic string, payload []byte) int {
	b.mu.RLock()
	set := b.topics[topic]
	targets := make([]*Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	n := 0
	for _, c := range targets {
		dropped, ok := c.enqueue(payload)
		if !ok {
			continue
		}
		n++
		if dropped && b.OnDropped != nil {
			b.OnDropped()
		}
	}
	if n > 0 && b.OnEnqueued != nil {
		b.OnEnqueued(n)
	}
	return n
}

// Reap remove conexões cujo transport caiu
func (b *Broker) Reap() int {
	b.mu.RLock()
	var dead []*Conn
	for _, c := range b.conns {
		if !c.Alive() {
			dead = append(dead, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range dead {
		b.Disconnect(c)
	}
	if len(dead) > 0 {
		b.log.Info("dead connections reaped", zap.Int("count", len(dead)))
	}
	return len(dead)
}

// Close encerra todas as conexões
func (b *Broker) Close() {
	b.mu.RLock()
	all := make([]*Conn, 0, len(b.conns))
	for _, c := range b.conns {
		all = append(all, c)
	}
	b.mu.RUnlock()
	for _, c := range all {
		b.Disconnect(c)
	}
}

// Connections retorna o número de conexões registradas
func (b *Broker) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Subscribers retorna quantas conexões assinam o tópico
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Topics devolve os tópicos assinados pela conexão
func (b *Broker) Topics(c *Conn) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}
