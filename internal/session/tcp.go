// Package session implementa as sessões de transporte com os drones: JSON
// delimitado por linha sobre TCP (frota simulada) e frames binários sobre
// rádio (frota física). Cada sessão publica seus eventos num eventbus.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"fleet_go/internal/eventbus"
	"fleet_go/internal/models"
	"fleet_go/pkg/logger"
)

// maxPending limita o buffer de um frame incompleto
const maxPending = 1 << 20

// TCPSession possui uma conexão TCP com um drone simulado
type TCPSession struct {
	id   string
	conn net.Conn
	bus  *eventbus.Bus[models.Message]

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once

	// limita os avisos de frame inválido
	warnLimiter *rate.Limiter
	dropped     int
}

// NewTCPSession cria a sessão; inscreva os handlers antes de Connect
func NewTCPSession(conn net.Conn) *TCPSession {
	return &TCPSession{
		id:          uuid.NewString(),
		conn:        conn,
		bus:         eventbus.New[models.Message](),
		done:        make(chan struct{}),
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// ID é a identidade da sessão no registro de drones
func (s *TCPSession) ID() string { return s.id }

// Bus retorna o barramento de eventos da sessão
func (s *TCPSession) Bus() *eventbus.Bus[models.Message] { return s.bus }

// RemoteAddr retorna o endereço do drone
func (s *TCPSession) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// Done é fechado quando o loop de leitura termina
func (s *TCPSession) Done() <-chan struct{} { return s.done }

// Connect emite connection e inicia o loop de leitura
func (s *TCPSession) Connect() {
	s.bus.Emit(eventbus.Event[models.Message]{Kind: eventbus.Connection})
	go s.readLoop()
}

func (s *TCPSession) readLoop() {
	defer s.conn.Close()
	defer close(s.done)

	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			pending = s.consume(append(pending, buf[:n]...))
		}
		if err != nil || n == 0 {
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.bus.Emit(eventbus.Event[models.Message]{Kind: eventbus.Error, Err: err})
			}
			s.bus.Emit(eventbus.Event[models.Message]{Kind: eventbus.Disconnection})
			return
		}
	}
}

// consume emite cada frame completo de data e retorna o resto incompleto.
// Um resto que já é um JSON válido é emitido sem esperar o '\n'.
func (s *TCPSession) consume(data []byte) []byte {
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.handleFrame(data[:i])
		data = data[i+1:]
	}

	tail := bytes.TrimSpace(data)
	if len(tail) > 0 && tail[0] == '{' && json.Valid(tail) {
		s.handleFrame(tail)
		return nil
	}
	if len(data) > maxPending {
		s.warnf("Descartando %d bytes sem delimitador da sessão %s", len(data), s.id)
		return nil
	}
	// copia para não reter o buffer de leitura
	return append([]byte(nil), data...)
}

func (s *TCPSession) handleFrame(frame []byte) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return
	}
	var msg models.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		s.warnf("Frame inválido da sessão %s: %v", s.id, err)
		return
	}
	if msg.Type == "" {
		s.warnf("Frame sem tipo da sessão %s: %s", s.id, truncate(frame, 80))
		return
	}
	s.bus.Emit(eventbus.Event[models.Message]{Kind: eventbus.Message, Payload: msg})
}

func (s *TCPSession) warnf(format string, args ...interface{}) {
	if !s.warnLimiter.Allow() {
		s.dropped++
		return
	}
	if s.dropped > 0 {
		format += fmt.Sprintf(" (+%d avisos suprimidos)", s.dropped)
		s.dropped = 0
	}
	logger.Warnf(format, args...)
}

// Send serializa a mensagem como uma linha JSON
func (s *TCPSession) Send(msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("erro ao serializar mensagem: %w", err)
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("erro ao enviar para %s: %w", s.id, err)
	}
	return nil
}

// ForceClose fecha os dois sentidos da conexão; o loop de leitura termina
// com disconnection.
func (s *TCPSession) ForceClose() {
	s.once.Do(func() {
		if tcp, ok := s.conn.(*net.TCPConn); ok {
			tcp.CloseWrite()
			tcp.CloseRead()
			return
		}
		s.conn.Close()
	})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
