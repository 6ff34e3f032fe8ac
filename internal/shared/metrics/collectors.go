package metrics

import "github.com/prometheus/client_golang/prometheus"

// Motivos de rejeição contabilizados em RejectedTotal
const (
	ReasonInputRejected  = "input_rejected"
	ReasonUnclassifiable = "unclassifiable"
	ReasonStaleRejected  = "stale_rejected"
	ReasonGameFault      = "game_fault"
	ReasonDecode         = "decode"
)

// Collectors agrupa as métricas Prometheus do núcleo de valoração
type Collectors struct {
	IngestedTotal       *prometheus.CounterVec // por kind
	RejectedTotal       *prometheus.CounterVec // por motivo
	LineMovementsTotal  prometheus.Counter
	PredictionFallbacks prometheus.Counter
	ValueBetsDetected   prometheus.Counter
	ValueBetsExpired    prometheus.Counter
	BrokerDelivered     prometheus.Counter
	BrokerDropped       prometheus.Counter
	RateLimited         prometheus.Counter
	Connections         prometheus.Gauge
	SinkDropped         *prometheus.CounterVec // por writer
}

// NewCollectors cria as métricas e registra no Registerer informado (nil = não registra)
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		IngestedTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "valuation_ingested_total", Help: "mensagens de ingestão processadas"}, []string{"kind"}),
		RejectedTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "valuation_rejected_total", Help: "mensagens descartadas por motivo"}, []string{"reason"}),
		LineMovementsTotal:  prometheus.NewCounter(prometheus.CounterOpts{Name: "valuation_line_movements_total", Help: "movimentos de linha emitidos"}),
		PredictionFallbacks: prometheus.NewCounter(prometheus.CounterOpts{Name: "valuation_prediction_fallbacks_total", Help: "previsões degradadas para o fallback"}),
		ValueBetsDetected:   prometheus.NewCounter(prometheus.CounterOpts{Name: "valuation_value_bets_detected_total", Help: "value bets aceitas"}),
		ValueBetsExpired:    prometheus.NewCounter(prometheus.CounterOpts{Name: "valuation_value_bets_expired_total", Help: "value bets desativadas pela varredura"}),
		BrokerDelivered:     prometheus.NewCounter(prometheus.CounterOpts{Name: "fanout_messages_enqueued_total", Help: "mensagens enfileiradas para conexões"}),
		BrokerDropped:       prometheus.NewCounter(prometheus.CounterOpts{Name: "fanout_messages_dropped_total", Help: "mensagens descartadas por fila cheia"}),
		RateLimited:         prometheus.NewCounter(prometheus.CounterOpts{Name: "fanout_rate_limited_total", Help: "mensagens de controle acima do limite"}),
		Connections:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "fanout_connections", Help: "conexões ativas"}),
		SinkDropped:         prometheus.NewCounterVec(prometheus.CounterOpts{Name: "valuation_sink_dropped_total", Help: "saídas externas descartadas por fila cheia"}, []string{"writer"}),
	}
	if reg != nil {
		reg.MustRegister(
			c.IngestedTotal, c.RejectedTotal, c.LineMovementsTotal, c.PredictionFallbacks,
			c.ValueBetsDetected, c.ValueBetsExpired, c.BrokerDelivered, c.BrokerDropped,
			c.RateLimited, c.Connections, c.SinkDropped,
		)
	}
	return c
}
