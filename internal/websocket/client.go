package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleet_go/internal/models"
	"fleet_go/pkg/logger"
)

const (
	// Tempo permitido para escrever uma mensagem para o peer.
	writeWait = 10 * time.Second

	// Tempo permitido para ler a próxima mensagem do peer.
	pongWait = 60 * time.Second

	// Envia pings ao peer com esse intervalo. Deve ser menor que pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Tamanho máximo da mensagem permitido. Comporta o código de um sandbox.
	maxMessageSize = 512 * 1024

	// Tamanho do buffer de canal para mensagens de saída.
	sendBufferSize = 256
)

// Client representa uma conexão WebSocket individual do painel
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// Buffer de mensagens para envio.
	send chan []byte

	id          string
	userAgent   string
	ipAddress   string
	connectedAt time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, userAgent, ipAddress string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		id:          uuid.New().String(),
		userAgent:   userAgent,
		ipAddress:   ipAddress,
		connectedAt: time.Now(),
	}
}

// readPump bombeia comandos do WebSocket para o hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				logger.Errorf("Erro de leitura WebSocket: %v", err)
			}
			break
		}

		c.processIncomingMessage(message)
	}
}

// writePump bombeia mensagens do hub para a conexão WebSocket, uma por frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// O hub fechou o canal.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) processIncomingMessage(message []byte) {
	cmd, err := ParseCommand(message)
	if err != nil {
		logger.Warnf("Mensagem do cliente %s descartada: %v", c.id, err)
		return
	}
	c.hub.submit(command{clientID: c.id, msg: cmd})
}

type command struct {
	clientID string
	msg      models.Message
}
