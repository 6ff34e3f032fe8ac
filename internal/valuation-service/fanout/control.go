package fanout

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// Ações aceitas na superfície de assinatura
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// ControlMessage é a mensagem de entrada do cliente
type ControlMessage struct {
	Action string   `json:"action"`
	Topic  string   `json:"topic,omitempty"`
	Topics []string `json:"topics,omitempty"`
}

// ErrorData é o corpo de um envelope de erro
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckData confirma uma ação de assinatura
type AckData struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Códigos de erro enviados ao cliente
const (
	CodeRateLimited   = "rate_limited"
	CodeInvalidTopic  = "invalid_topic"
	CodeInvalidAction = "invalid_action"
	CodeBadMessage    = "bad_message"
)

// HandleControl aplica uma mensagem de controle da conexão e responde na
// própria fila. Acima do limite a conexão recebe um erro, não é derrubada.
func (b *Broker) HandleControl(c *Conn, raw []byte) error {
	if !c.limiter.AllowN(b.opts.Now(), 1) {
		if b.OnRateLimited != nil {
			b.OnRateLimited()
		}
		b.reply(c, events.MsgError, ErrorData{Code: CodeRateLimited, Message: "too many control messages"})
		return ErrRateLimited
	}

	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.reply(c, events.MsgError, ErrorData{Code: CodeBadMessage, Message: "malformed control message"})
		return fmt.Errorf("decode control message: %w", err)
	}

	switch msg.Action {
	case ActionPing:
		b.reply(c, events.MsgPong, nil)
		return nil

	case ActionSubscribe, ActionUnsubscribe:
		list := msg.Topics
		if msg.Topic != "" {
			list = append([]string{msg.Topic}, list...)
		}
		if len(list) == 0 {
			b.reply(c, events.MsgError, ErrorData{Code: CodeInvalidTopic, Message: "no topic given"})
			return ErrInvalidTopic
		}
		for _, topic := range list {
			var err error
			if msg.Action == ActionSubscribe {
				err = b.Subscribe(c, topic)
			} else {
				err = b.Unsubscribe(c, topic)
			}
			if errors.Is(err, ErrClosed) {
				return err
			}
			if err != nil {
				b.reply(c, events.MsgError, ErrorData{Code: CodeInvalidTopic, Message: err.Error()})
				return err
			}
		}
		b.reply(c, events.MsgAck, AckData{Action: msg.Action, Topics: list})
		return nil
	}

	b.reply(c, events.MsgError, ErrorData{Code: CodeInvalidAction, Message: fmt.Sprintf("unknown action %q", msg.Action)})
	return fmt.Errorf("unknown action %q", msg.Action)
}

// reply enfileira uma resposta direta para a conexão
func (b *Broker) reply(c *Conn, typ events.MessageType, data any) {
	payload, err := json.Marshal(events.Envelope{Type: typ, Data: data, Timestamp: b.opts.Now()})
	if err != nil {
		b.log.Warn("reply marshal failed", zap.Error(err))
		return
	}
	c.enqueue(payload)
}
