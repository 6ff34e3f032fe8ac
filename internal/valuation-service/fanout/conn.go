package fanout

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Transport é o lado de escrita de uma sessão (WebSocket, teste, ...).
// WriteMessage pode bloquear; só o loop de envio da conexão o chama.
type Transport interface {
	WriteMessage(payload []byte) error
	Close() error
}

// closedReporter é implementado por transports que sabem quando a sessão caiu
type closedReporter interface {
	Closed() bool
}

// Conn é uma conexão registrada no broker, com fila de saída limitada
// (descarta a mais antiga quando cheia) e limitador de mensagens de controle
type Conn struct {
	ID          string
	ConnectedAt time.Time

	transport Transport
	limiter   *rate.Limiter

	mu    sync.Mutex
	queue [][]byte // circular
	head  int
	size  int

	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	dead    atomic.Bool
	dropped atomic.Int64
	sent    atomic.Int64

	// tópicos assinados; protegido pelo mutex do broker
	topics map[string]struct{}
}

func newConn(id string, t Transport, queueSize int, limiter *rate.Limiter, now time.Time) *Conn {
	return &Conn{
		ID:          id,
		ConnectedAt: now,
		transport:   t,
		limiter:     limiter,
		queue:       make([][]byte, queueSize),
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		topics:      make(map[string]struct{}),
	}
}

// enqueue nunca bloqueia; devolve true quando precisou descartar a mais antiga
func (c *Conn) enqueue(msg []byte) (dropped bool, ok bool) {
	if c.dead.Load() {
		return false, false
	}
	c.mu.Lock()
	if c.size == len(c.queue) {
		c.head = (c.head + 1) % len(c.queue)
		c.size--
		dropped = true
	}
	c.queue[(c.head+c.size)%len(c.queue)] = msg
	c.size++
	c.mu.Unlock()

	if dropped {
		c.dropped.Add(1)
	}
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return dropped, true
}

func (c *Conn) pop() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size == 0 {
		return nil, false
	}
	msg := c.queue[c.head]
	c.queue[c.head] = nil
	c.head = (c.head + 1) % len(c.queue)
	c.size--
	return msg, true
}

// sendLoop entrega a fila ao transport até a conexão ser encerrada
func (c *Conn) sendLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.notify:
		}
		for {
			select {
			case <-c.done:
				return
			default:
			}
			msg, ok := c.pop()
			if !ok {
				break
			}
			if err := c.transport.WriteMessage(msg); err != nil {
				c.dead.Store(true)
				return
			}
			c.sent.Add(1)
		}
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		c.dead.Store(true)
		close(c.done)
		_ = c.transport.Close()
		c.mu.Lock()
		for i := range c.queue {
			c.queue[i] = nil
		}
		c.size = 0
		c.mu.Unlock()
	})
}

// Alive indica se a sessão continua utilizável
func (c *Conn) Alive() bool {
	if c.dead.Load() {
		return false
	}
	if cr, ok := c.transport.(closedReporter); ok && cr.Closed() {
		return false
	}
	return true
}

// QueueLen retorna quantas mensagens aguardam envio
func (c *Conn) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// QueueCap retorna o limite da fila de saída
func (c *Conn) QueueCap() int { return len(c.queue) }

func (c *Conn) Dropped() int64 { return c.dropped.Load() }
func (c *Conn) Sent() int64    { return c.sent.Load() }

// Done fecha quando a conexão é encerrada
func (c *Conn) Done() <-chan struct{} { return c.done }
