package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"fleet_go/internal/eventbus"
	"fleet_go/internal/models"
	"fleet_go/internal/session"
	"fleet_go/pkg/logger"
)

// acceptPoll é o intervalo em que o loop de aceitação verifica a flag running
const acceptPoll = 500 * time.Millisecond

// sessionDrainTimeout limita a espera pelos loops de leitura no Stop
const sessionDrainTimeout = 2 * time.Second

// SimulatedConfig configura o servidor TCP da frota simulada
type SimulatedConfig struct {
	Host      string
	Port      int
	MaxDrones int
}

// SimulatedController aceita conexões TCP de drones simulados. Uma conexão
// pode transportar pulses de vários drones; a chave no registro é
// "<sessão>/<nome>".
type SimulatedController struct {
	*base
	cfg SimulatedConfig

	listener *net.TCPListener
	done     chan struct{}

	sessionsMu sync.Mutex
	sessions   map[string]*session.TCPSession
}

// NewSimulatedController cria o controlador; nada escuta até Launch
func NewSimulatedController(cfg SimulatedConfig, deps Deps) *SimulatedController {
	return &SimulatedController{
		base:     newBase(models.MissionSimulated, deps),
		cfg:      cfg,
		sessions: make(map[string]*session.TCPSession),
	}
}

// Launch abre o socket e inicia o loop de aceitação. O canal retornado é
// fechado quando o loop termina.
func (c *SimulatedController) Launch() (<-chan struct{}, error) {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprint(c.cfg.Port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("endereço inválido %s: %w", addr, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("erro ao escutar em %s: %w", addr, err)
	}

	c.listener = ln
	c.done = make(chan struct{})
	c.running.Store(true)
	logger.Infof("Frota simulada aguardando drones em %s", ln.Addr())

	go c.acceptLoop()
	return c.done, nil
}

// Addr retorna o endereço em que o controlador escuta
func (c *SimulatedController) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

func (c *SimulatedController) acceptLoop() {
	defer close(c.done)
	for c.running.Load() {
		c.listener.SetDeadline(time.Now().Add(acceptPoll))
		conn, err := c.listener.AcceptTCP()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if c.running.Load() {
				logger.Error("Erro ao aceitar conexão da frota simulada", err)
			}
			continue
		}

		if c.cfg.MaxDrones > 0 && c.sessionCount() >= c.cfg.MaxDrones {
			logger.Warnf("Limite de %d conexões simuladas atingido; recusando %s", c.cfg.MaxDrones, conn.RemoteAddr())
			conn.Close()
			continue
		}
		c.attach(session.NewTCPSession(conn))
	}
}

func (c *SimulatedController) sessionCount() int {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	return len(c.sessions)
}

func (c *SimulatedController) attach(s *session.TCPSession) {
	bus := s.Bus()
	bus.Subscribe(eventbus.Connection, func(eventbus.Event[models.Message]) {
		logger.Infof("Drone simulado conectado: %s (sessão %s)", s.RemoteAddr(), s.ID())
	})
	bus.Subscribe(eventbus.Message, func(ev eventbus.Event[models.Message]) {
		c.onMessage(s, ev.Payload)
	})
	bus.Subscribe(eventbus.Error, func(ev eventbus.Event[models.Message]) {
		logger.Warnf("Erro na sessão simulada %s: %v", s.ID(), ev.Err)
	})
	bus.Subscribe(eventbus.Disconnection, func(eventbus.Event[models.Message]) {
		c.onDisconnect(s)
	})

	c.sessionsMu.Lock()
	c.sessions[s.ID()] = s
	c.sessionsMu.Unlock()
	s.Connect()
}

func registryKey(sessionID, name string) string { return sessionID + "/" + name }

// carriesTimestamp indica se o pulse trouxe o próprio timestamp
func carriesTimestamp(data []byte) bool {
	var stamp struct {
		Timestamp *int64 `json:"timestamp"`
	}
	return json.Unmarshal(data, &stamp) == nil && stamp.Timestamp != nil
}

func (c *SimulatedController) onMessage(s *session.TCPSession, msg models.Message) {
	if msg.Type != models.TypePulse {
		// mensagens dos drones que não são telemetria seguem para o painel
		c.deps.Relay.Broadcast(msg)
		return
	}

	name := msg.Target()
	if name == models.AllDrones {
		logger.Warnf("Pulse sem nome na sessão %s; descartado", s.ID())
		return
	}
	key := registryKey(s.ID(), name)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, hadPrev := c.registry.Get(key)
	cur, err := prev.MergeJSON(msg.Data)
	if err != nil {
		logger.Warnf("Pulse inválido de %s: %v", name, err)
		return
	}
	cur.Name = name
	cur.Real = false
	if !carriesTimestamp(msg.Data) {
		cur.Timestamp = c.now()
	}
	c.registry.Set(key, cur)

	c.publishPulse(prev, hadPrev, cur)
	c.feedLocked(cur, true)
}

func (c *SimulatedController) onDisconnect(s *session.TCPSession) {
	logger.Infof("Drone simulado desconectado: sessão %s", s.ID())

	c.sessionsMu.Lock()
	delete(c.sessions, s.ID())
	c.sessionsMu.Unlock()

	if !c.running.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := s.ID() + "/"
	var gone []models.Drone
	for _, key := range c.registry.Keys() {
		if strings.HasPrefix(key, prefix) {
			if d, ok := c.registry.Remove(key); ok {
				gone = append(gone, d)
			}
		}
	}
	c.dropDronesLocked(gone)
}

// HandleCommand trata um comando do painel destinado à frota simulada
func (c *SimulatedController) HandleCommand(msg models.Message) {
	c.route(msg, c.send)
}

// send entrega a mensagem às sessões dos drones endereçados
func (c *SimulatedController) send(msg models.Message) {
	target := msg.Target()

	c.sessionsMu.Lock()
	var targets []*session.TCPSession
	if target == models.AllDrones {
		for _, s := range c.sessions {
			targets = append(targets, s)
		}
	} else if key, _, ok := c.registry.FindByName(target); ok {
		if s, ok := c.sessions[strings.SplitN(key, "/", 2)[0]]; ok {
			targets = append(targets, s)
		}
	}
	c.sessionsMu.Unlock()

	for _, s := range targets {
		if err := s.Send(msg); err != nil {
			logger.Warnf("Erro ao enviar %s para a sessão %s: %v", msg.Type, s.ID(), err)
		}
	}
}

// Stop encerra as sessões e o socket de escuta. Chamadas repetidas não têm efeito.
func (c *SimulatedController) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	logger.Info("Encerrando frota simulada")
	c.abortMission()

	c.sessionsMu.Lock()
	sessions := make([]*session.TCPSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessionsMu.Unlock()

	for _, s := range sessions {
		s.ForceClose()
	}
	if c.listener != nil {
		c.listener.Close()
	}

	// nenhum pulse deve chegar depois do Stop
	ctx, cancel := context.WithTimeout(context.Background(), sessionDrainTimeout)
	defer cancel()
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			logger.Warnf("Sessão %s não encerrou a leitura a tempo", s.ID())
		}
	}
	c.registry.Clear()
}
