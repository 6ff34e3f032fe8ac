package events

import "time"

// MessageType é o tipo de envelope enviado aos assinantes
type MessageType string

const (
	MsgOddsUpdate       MessageType = "odds_update"
	MsgLineMovement     MessageType = "line_movement"
	MsgGameEvent        MessageType = "game_event"
	MsgPredictionUpdate MessageType = "prediction_update"
	MsgValueBet         MessageType = "value_bet"
	MsgError            MessageType = "error"
	MsgPong             MessageType = "pong"
	MsgAck              MessageType = "ack"
)

// Envelope é a unidade de saída do fan-out
type Envelope struct {
	Topic     string      `json:"topic"`
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
