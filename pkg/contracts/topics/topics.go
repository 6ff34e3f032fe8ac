package topics

import "strings"

const (
	// Kafka
	LiveIngest = "live_ingest"
	ValueBets  = "value_bets"

	// DLQ da ingestão
	LiveIngestDLQ = "live_ingest_dlq"

	// Redis Pub/Sub entre instâncias
	RelayChannel = "valuation_fanout_relay"
)

// Prefixos dos tópicos do fan-out
const (
	prefixGame      = "game:"
	prefixSport     = "sport:"
	prefixBookmaker = "bookmaker:"

	AllValueBets = "valuebets:all"
)

func Game(id string) string        { return prefixGame + id }
func Sport(name string) string     { return prefixSport + name }
func Bookmaker(name string) string { return prefixBookmaker + name }

// Valid aceita apenas os formatos conhecidos com sufixo não vazio
func Valid(topic string) bool {
	if topic == AllValueBets {
		return true
	}
	for _, p := range []string{prefixGame, prefixSport, prefixBookmaker} {
		if strings.HasPrefix(topic, p) && len(topic) > len(p) {
			return true
		}
	}
	return false
}
