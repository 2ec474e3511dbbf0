package http

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// wsConn es el subconjunto de *websocket.Conn que usa el gateway; permite
// probar el broadcast sin levantar un servidor.
type wsConn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// scrapingEvent mensaje que se difunde a los clientes conectados.
type scrapingEvent struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	State   string `json:"state"`
	Payload any    `json:"payload,omitempty"`
}

// Gateway difunde el progreso de los jobs de scraping por websocket.
// Implementa scraping.Notifier: el broadcast es fire and forget, un cliente
// caído se descarta y nunca bloquea al worker.
type Gateway struct {
	mu      sync.Mutex
	clients map[wsConn]struct{}
	log     *logger.Logger
}

var _ scraping.Notifier = (*Gateway)(nil)

// NewGateway construye el gateway sin clientes.
func NewGateway(log *logger.Logger) *Gateway {
	return &Gateway{clients: make(map[wsConn]struct{}), log: log}
}

// Handler devuelve el handler de Fiber para la ruta /ws.
func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		g.atender(c)
	})
}

// UpgradeRequired corta las peticiones a /ws que no son un upgrade websocket.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// atender registra la conexión y se queda leyendo hasta que el cliente corte.
// No se espera ningún mensaje del cliente; el read loop solo detecta el cierre.
func (g *Gateway) atender(c wsConn) {
	g.registrar(c)
	defer g.desconectar(c)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) registrar(c wsConn) {
	g.mu.Lock()
	g.clients[c] = struct{}{}
	total := len(g.clients)
	g.mu.Unlock()
	g.log.Debug().Int("clientes", total).Msg("cliente websocket conectado")
}

func (g *Gateway) desconectar(c wsConn) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
	_ = c.Close()
}

// Broadcast difunde un cambio de estado de job a todos los clientes.
// Un error de escritura descarta al cliente; no se reintenta ni se propaga.
func (g *Gateway) Broadcast(jobID string, state scraping.JobState, payload any) {
	evento := scrapingEvent{Type: "scraping_status", JobID: jobID, State: string(state), Payload: payload}

	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.clients {
		if err := c.WriteJSON(evento); err != nil {
			g.log.Warn().Err(err).Str("job_id", jobID).Msg("cliente websocket descartado")
			delete(g.clients, c)
			_ = c.Close()
		}
	}
}
