package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// MessageWriter é satisfeito por *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher encapsula o writer Kafka e o logger.
type KafkaPublisher struct {
	writer MessageWriter
	log    *zap.Logger
}

// NewKafkaPublisher cria um publisher sobre um writer já configurado para o tópico
func NewKafkaPublisher(w MessageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

// PublishValueBet serializa a value bet em JSON e envia para o tópico configurado.
// A chave da mensagem utiliza o GameID para manter a ordem por partida.
func (p *KafkaPublisher) PublishValueBet(ctx context.Context, vb events.ValueBet) error {
	value, err := json.Marshal(vb)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(vb.GameID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(events.MsgValueBet)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish value bet", zap.String("game_id", vb.GameID), zap.Error(err))
		return err
	}

	p.log.Debug("published value bet", zap.String("id", vb.ID), zap.Bool("active", vb.IsActive))
	return nil
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
