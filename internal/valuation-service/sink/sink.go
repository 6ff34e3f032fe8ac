// Package sink entrega as saídas do núcleo aos colaboradores externos (cache
// Redis, arquivo Postgres, tópico Kafka) em filas limitadas: o caminho da
// ingestão nunca espera por I/O.
package sink

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// SnapshotCache é satisfeito por *cache.RedisCache
type SnapshotCache interface {
	SetGameState(ctx context.Context, st events.GameState) error
	SetPrediction(ctx context.Context, p events.WinProbability) error
	SetValueBet(ctx context.Context, vb events.ValueBet) error
}

// Archive é satisfeito por *repository.PostgresRepo
type Archive interface {
	UpsertValueBet(ctx context.Context, vb events.ValueBet) error
	InsertLineMovement(ctx context.Context, mv events.LineMovement) error
}

// Stream é satisfeito por *publisher.KafkaPublisher
type Stream interface {
	PublishValueBet(ctx context.Context, vb events.ValueBet) error
}

// Nomes dos writers nas métricas
const (
	WriterCache   = "cache"
	WriterArchive = "archive"
	WriterStream  = "stream"
)

type job func(ctx context.Context) error

type writer struct {
	name string
	q    chan job
}

type Options struct {
	Queue   int           // profundidade por writer
	Timeout time.Duration // limite por operação
}

// Sink implementa core.Sink; destinos nil são ignorados
type Sink struct {
	log     *zap.Logger
	opts    Options
	cache   SnapshotCache
	archive Archive
	stream  Stream
	writers map[string]*writer

	cancel context.CancelFunc
	wg     sync.WaitGroup

	OnDropped func(writer string)
	OnError   func(writer string)
}

func New(log *zap.Logger, cache SnapshotCache, archive Archive, stream Stream, opts Options) *Sink {
	if opts.Queue < 1 {
		opts.Queue = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	s := &Sink{
		log:     log,
		opts:    opts,
		cache:   cache,
		archive: archive,
		stream:  stream,
		writers: make(map[string]*writer),
	}
	for _, name := range []string{WriterCache, WriterArchive, WriterStream} {
		s.writers[name] = &writer{name: name, q: make(chan job, opts.Queue)}
	}
	return s
}

// Start inicia um goroutine por writer
func (s *Sink) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, w := range s.writers {
		s.wg.Add(1)
		go s.run(ctx, w)
	}
}

func (s *Sink) run(ctx context.Context, w *writer) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.q:
			jctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
			if err := j(jctx); err != nil {
				s.log.Warn("sink write failed", zap.String("writer", w.name), zap.Error(err))
				if s.OnError != nil {
					s.OnError(w.name)
				}
			}
			cancel()
		}
	}
}

// Close interrompe os writers; o que estiver na fila é descartado
func (s *Sink) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sink) enqueue(name string, j job) {
	w := s.writers[name]
	select {
	case w.q <- j:
	default:
		if s.OnDropped != nil {
			s.OnDropped(name)
		}
	}
}

func (s *Sink) GameState(st events.GameState) {
	if s.cache == nil {
		return
	}
	s.enqueue(WriterCache, func(ctx context.Context) error { return s.cache.SetGameState(ctx, st) })
}

func (s *Sink) Prediction(p events.WinProbability) {
	if s.cache == nil {
		return
	}
	s.enqueue(WriterCache, func(ctx context.Context) error { return s.cache.SetPrediction(ctx, p) })
}

func (s *Sink) LineMovement(mv events.LineMovement) {
	if s.archive == nil {
		return
	}
	s.enqueue(WriterArchive, func(ctx context.Context) error { return s.archive.InsertLineMovement(ctx, mv) })
}

// ValueBet vai para os três destinos: snapshot, arquivo e tópico
func (s *Sink) ValueBet(vb events.ValueBet) {
	if s.cache != nil {
		s.enqueue(WriterCache, func(ctx context.Context) error { return s.cache.SetValueBet(ctx, vb) })
	}
	if s.archive != nil {
		s.enqueue(WriterArchive, func(ctx context.Context) error { return s.archive.UpsertValueBet(ctx, vb) })
	}
	if s.stream != nil {
		s.enqueue(WriterStream, func(ctx context.Context) error { return s.stream.PublishValueBet(ctx, vb) })
	}
}
