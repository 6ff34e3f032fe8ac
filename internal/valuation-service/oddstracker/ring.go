package oddstracker

import "github.com/radieske/live-odds-core/pkg/contracts/events"

// ring é um buffer circular de capacidade fixa; a cotação mais antiga é
// sobrescrita quando cheio.
type ring struct {
	buf  []events.OddsQuote
	head int // próxima posição de escrita
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]events.OddsQuote, capacity)}
}

func (r *ring) push(q events.OddsQuote) {
	r.buf[r.head] = q
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *ring) last() (events.OddsQuote, bool) {
	if r.size == 0 {
		return events.OddsQuote{}, false
	}
	i := (r.head - 1 + len(r.buf)) % len(r.buf)
	return r.buf[i], true
}

// items devolve uma cópia em ordem cronológica (mais antiga primeiro)
func (r *ring) items() []events.OddsQuote {
	out := make([]events.OddsQuote, 0, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
