// Package ws é a superfície de assinatura sobre WebSocket: uma leitura de
// mensagens de controle e um loop de envio (no broker) por conexão.
package ws

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/valuation-service/fanout"
)

const (
	writeWait      = 10 * time.Second    // limite para escrever uma mensagem
	pongWait       = 60 * time.Second    // limite para receber o próximo pong
	pingPeriod     = (pongWait * 9) / 10 // pings antes do pongWait vencer
	maxMessageSize = 512                 // mensagens de controle são pequenas
)

// transport adapta *websocket.Conn ao fanout.Transport.
// WriteMessage só é chamado pelo loop de envio da conexão.
type transport struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func (t *transport) WriteMessage(p []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		t.closed.Store(true)
		return err
	}
	return nil
}

func (t *transport) Close() error {
	t.closed.Store(true)
	return t.conn.Close()
}

func (t *transport) Closed() bool { return t.closed.Load() }

// Handler aceita conexões e registra cada uma no broker
type Handler struct {
	log      *zap.Logger
	broker   *fanout.Broker
	upgrader websocket.Upgrader
}

// NewHandler cria o handler com política customizada de origem (CORS)
func NewHandler(log *zap.Logger, broker *fanout.Broker, allowOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		log:    log,
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
	}
}

// ServeHTTP gerencia o ciclo de vida da conexão. Tópicos iniciais podem vir
// em ?topics=game:1,sport:NBA; o resto chega como mensagens de controle.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	t := &transport{conn: conn}
	c := h.broker.Register(t)
	log := h.log.With(zap.String("conn_id", c.ID), zap.String("remote", r.RemoteAddr))
	log.Debug("subscriber connected")

	for _, topic := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if topic = strings.TrimSpace(topic); topic == "" {
			continue
		}
		if err := h.broker.Subscribe(c, topic); err != nil {
			log.Debug("initial subscribe rejected", zap.String("topic", topic), zap.Error(err))
		}
	}

	stop := make(chan struct{})
	go h.pingLoop(t, c, stop)

	defer func() {
		close(stop)
		h.broker.Disconnect(c)
		log.Debug("subscriber disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		// erros já foram respondidos ao cliente pela própria fila
		if err := h.broker.HandleControl(c, msg); err != nil {
			log.Debug("control message rejected", zap.Error(err))
		}
	}
}

// pingLoop mantém a sessão viva; WriteControl pode rodar junto com o loop de envio
func (h *Handler) pingLoop(t *transport, c *fanout.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.Done():
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				t.closed.Store(true)
				return
			}
		}
	}
}
