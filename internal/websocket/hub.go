package websocket

import (
	"context"
	"sync"
	"time"

	"fleet_go/internal/models"
	"fleet_go/pkg/logger"
)

// Source fornece ao hub o estado inicial de cada novo cliente e trata os
// comandos recebidos do painel.
type Source interface {
	InitialMessages() []models.Message
	HandleCommand(msg models.Message)
}

type replay struct {
	client   *Client
	messages []models.Message
}

// Hub gerencia todas as conexões do painel e a distribuição de mensagens
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	replays    chan replay
	commands   chan command

	source Source

	mu sync.RWMutex

	stats struct {
		totalMessages      int64
		totalClients       int64
		slowClients        int64
		commandsHandled    int64
		messagesPerSecond  float64
		lastStatsReset     time.Time
		messagesSinceReset int64
	}
	statsLock sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub cria uma nova instância do Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		replays:    make(chan replay, 16),
		commands:   make(chan command, 100),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	h.stats.lastStatsReset = time.Now()

	return h
}

// SetSource define quem fornece o estado inicial e trata os comandos.
// Deve ser chamado antes de Run.
func (h *Hub) SetSource(s Source) {
	h.source = s
}

// Run executa o loop principal do hub até Shutdown
func (h *Hub) Run() {
	logger.Info("Iniciando WebSocket Hub")
	defer close(h.done)

	go h.commandLoop()

	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			logger.Info("Encerrando WebSocket Hub")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()

			logger.Infof("Novo cliente WebSocket conectado. ID: %s. Total: %d", client.id, clientCount)

			h.statsLock.Lock()
			h.stats.totalClients++
			h.statsLock.Unlock()

			go h.collectInitialData(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case r := <-h.replays:
			h.mu.RLock()
			_, alive := h.clients[r.client]
			h.mu.RUnlock()
			if !alive {
				continue
			}
			for _, msg := range r.messages {
				if b, err := SerializeMessage(msg); err == nil {
					h.deliver(r.client, b)
				}
			}

		case message := <-h.broadcast:
			h.statsLock.Lock()
			h.stats.totalMessages++
			h.stats.messagesSinceReset++
			h.statsLock.Unlock()

			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				h.deliver(client, message)
			}

		case <-statsTicker.C:
			h.statsLock.Lock()
			elapsed := time.Since(h.stats.lastStatsReset).Seconds()
			if elapsed > 0 {
				h.stats.messagesPerSecond = float64(h.stats.messagesSinceReset) / elapsed
			}
			h.stats.messagesSinceReset = 0
			h.stats.lastStatsReset = time.Now()
			mps := h.stats.messagesPerSecond
			total := h.stats.totalMessages
			h.statsLock.Unlock()

			logger.Infof("Estatísticas WebSocket: %d clientes, %.2f msgs/seg, total: %d mensagens",
				h.ClientCount(), mps, total)
		}
	}
}

// deliver enfileira a mensagem para o cliente. Um cliente com o buffer
// cheio é desconectado. Só é chamado pelo loop do hub.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		logger.Warnf("Cliente %s não acompanha o fluxo; desconectando", client.id)
		h.statsLock.Lock()
		h.stats.slowClients++
		h.statsLock.Unlock()
		h.removeClient(client)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Infof("Cliente WebSocket desconectado. ID: %s. Total: %d", client.id, len(h.clients))
	}
}

// collectInitialData monta fora do loop o estado atual das frotas para o
// novo cliente: um pulse por drone e o snapshot de cada missão ativa.
func (h *Hub) collectInitialData(client *Client) {
	if h.source == nil {
		return
	}
	msgs := h.source.InitialMessages()
	select {
	case h.replays <- replay{client: client, messages: msgs}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) commandLoop() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case cmd := <-h.commands:
			logger.Infof("Comando recebido do cliente %s: %s", cmd.clientID, cmd.msg.Type)
			if h.source != nil {
				h.source.HandleCommand(cmd.msg)
			}
			h.statsLock.Lock()
			h.stats.commandsHandled++
			h.statsLock.Unlock()
		}
	}
}

// Broadcast envia uma mensagem a todos os clientes do painel
func (h *Hub) Broadcast(msg models.Message) {
	b, err := SerializeMessage(msg)
	if err != nil {
		logger.Error("Erro ao serializar mensagem para o painel", err)
		return
	}
	select {
	case h.broadcast <- b:
	case <-h.ctx.Done():
	}
}

func (h *Hub) add(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		close(client.send)
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) submit(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.ctx.Done():
	}
}

// Shutdown encerra o hub e aguarda o loop terminar
func (h *Hub) Shutdown() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("Fechando todas as conexões de clientes WebSocket")
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// ClientCount retorna o número atual de clientes conectados
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats é um retrato dos contadores do hub
type HubStats struct {
	Clients           int     `json:"clients"`
	TotalClients      int64   `json:"totalClients"`
	TotalMessages     int64   `json:"totalMessages"`
	MessagesPerSecond float64 `json:"messagesPerSecond"`
	SlowClients       int64   `json:"slowClients"`
	CommandsHandled   int64   `json:"commandsHandled"`
	PendingBroadcasts int     `json:"pendingBroadcasts"`
	PendingCommands   int     `json:"pendingCommands"`
}

// Stats retorna os contadores atuais
func (h *Hub) Stats() HubStats {
	h.statsLock.Lock()
	st := HubStats{
		TotalClients:      h.stats.totalClients,
		TotalMessages:     h.stats.totalMessages,
		MessagesPerSecond: h.stats.messagesPerSecond,
		SlowClients:       h.stats.slowClients,
		CommandsHandled:   h.stats.commandsHandled,
	}
	h.statsLock.Unlock()

	st.Clients = h.ClientCount()
	st.PendingBroadcasts = len(h.broadcast)
	st.PendingCommands = len(h.commands)
	return st
}

// congested indica filas de saída ou de comandos quase cheias
func (st HubStats) congested(broadcastCap, commandCap int) bool {
	return st.PendingBroadcasts*4 >= broadcastCap*3 || st.PendingCommands*4 >= commandCap*3
}
