package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleet_go/pkg/logger"
)

// qualquer origem é aceita: o painel é servido em outra porta
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler aceita os painéis e expõe a saúde do relay
type Handler struct {
	hub *Hub
}

// NewHandler cria o handler do painel
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeHTTP faz o upgrade e registra o painel no hub
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("Erro ao fazer upgrade para WebSocket: %v", err)
		return
	}

	addr := remoteAddr(r)
	client := newClient(h.hub, conn, r.UserAgent(), addr)
	logger.Infof("Painel conectado de %s (cliente %s)", addr, client.id)

	h.hub.add(client)
	go client.writePump()
	go client.readPump()
}

func remoteAddr(r *http.Request) string {
	for _, header := range []string{"X-Real-IP", "X-Forwarded-For"} {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	return r.RemoteAddr
}

// HealthHandler responde com os contadores do hub. O status passa a
// "congested" quando as filas de saída ou de comandos estão quase cheias.
func (h *Handler) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := h.hub.Stats()
		status := "ok"
		code := http.StatusOK
		if st.congested(cap(h.hub.broadcast), cap(h.hub.commands)) {
			status = "congested"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HubStats
		}{status, time.Now(), st})
	}
}
