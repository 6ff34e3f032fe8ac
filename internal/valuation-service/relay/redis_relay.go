// Package relay replica as publicações do broker entre instâncias via Redis
// Pub/Sub. Cada instância marca seus quadros com um id de origem e ignora os
// próprios ao recebê-los.
package relay

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// frame é o que trafega no canal: envelope já serializado + origem
type frame struct {
	Origin  string          `json:"origin"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// DeliverFunc entrega um envelope serializado aos assinantes locais
type DeliverFunc func(topic string, payload []byte) int

type Relay struct {
	log     *zap.Logger
	client  *redis.Client
	channel string
	origin  string
	out     chan frame

	OnDropped func() // fila de saída cheia
}

func New(client *redis.Client, channel string, buffer int, log *zap.Logger) *Relay {
	if buffer < 1 {
		buffer = 1024
	}
	return &Relay{
		log:     log,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		out:     make(chan frame, buffer),
	}
}

func (r *Relay) Origin() string { return r.origin }

// Forward agenda a replicação; nunca bloqueia quem publica
func (r *Relay) Forward(topic string, payload []byte) {
	select {
	case r.out <- frame{Origin: r.origin, Topic: topic, Payload: payload}:
	default:
		if r.OnDropped != nil {
			r.OnDropped()
		}
	}
}

// Run publica a fila de saída e escuta o canal até o contexto terminar
func (r *Relay) Run(ctx context.Context, deliver DeliverFunc) {
	sub := r.client.Subscribe(ctx, r.channel)
	ch := sub.Channel()
	defer sub.Close() // encerra a inscrição ao finalizar o contexto

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-r.out:
			b, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
				r.log.Warn("relay publish failed", zap.Error(err))
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.receive(msg.Payload, deliver)
		}
	}
}

// receive decodifica um quadro remoto e entrega localmente; devolve false quando ignorado
func (r *Relay) receive(raw string, deliver DeliverFunc) bool {
	var f frame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		r.log.Warn("relay unmarshal error", zap.Error(err))
		return false
	}
	if f.Origin == r.origin || f.Topic == "" {
		return false
	}
	deliver(f.Topic, f.Payload)
	return true
}
