// Package consumer bombeia o tópico de ingestão para o núcleo, com um worker
// por partição lógica: mensagens da mesma partida nunca são processadas em paralelo.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/valuation-service/core"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// MessageReader é satisfeito por *kafka.Reader
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// MessageWriter é satisfeito por *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Ingestor interface {
	Ingest(ctx context.Context, msg events.IngestMessage) error
}

// Processor consome mensagens de ingestão do Kafka e entrega ao núcleo.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log     *zap.Logger
	Reader  MessageReader
	Core    Ingestor
	DLQ     MessageWriter // opcional
	Workers int
	Queue   int           // profundidade da fila de cada worker
	Timeout time.Duration // limite por mensagem

	OnConsumed func()       // métricas (counter++)
	OnError    func(string) // métricas por fase
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run inicia o loop principal de leitura e os workers; retorna quando o contexto termina
func (p *Processor) Run(ctx context.Context) error {
	n := p.Workers
	if n < 1 {
		n = 1
	}
	depth := p.Queue
	if depth < 1 {
		depth = 64
	}

	queues := make([]chan kafka.Message, n)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, depth)
		wg.Add(1)
		go func(q <-chan kafka.Message) {
			defer wg.Done()
			for m := range q {
				p.handle(ctx, m)
			}
		}(queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		// fila cheia segura a leitura: backpressure até o broker
		select {
		case queues[shard(m.Key, n)] <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// shard escolhe o worker pela chave da mensagem (gameID)
func shard(key []byte, n int) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) {
	var msg events.IngestMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, err)
		return
	}
	if msg.GameID == "" {
		msg.GameID = string(m.Key)
	}

	ictx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	err := p.Core.Ingest(ictx, msg)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrBadMessage), errors.Is(err, core.ErrUnknownKind), errors.Is(err, core.ErrGameFault):
		p.Log.Warn("ingest failed",
			zap.String("game_id", msg.GameID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
		p.fail("ingest")
		p.deadLetter(ctx, m, err)
	default:
		// fora de ordem e cotações velhas já foram contadas pelo núcleo
		p.Log.Debug("message rejected", zap.String("game_id", msg.GameID), zap.Error(err))
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	dl := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source_topic", Value: []byte(m.Topic)},
		},
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}
