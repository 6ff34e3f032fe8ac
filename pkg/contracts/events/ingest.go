package events

import (
	"encoding/json"
	"time"
)

// Kind é o tipo de mensagem da ingestão
type Kind string

const (
	KindScore Kind = "score"
	KindEvent Kind = "event"
	KindOdds  Kind = "odds"
)

// IngestMessage é publicada no tópico "live_ingest" com chave = GameID
type IngestMessage struct {
	GameID    string          `json:"game_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}
