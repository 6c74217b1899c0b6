package session

import (
	"errors"
	"fmt"
	"sync"

	"fleet_go/internal/eventbus"
	"fleet_go/internal/models"
	"fleet_go/internal/radio"
	"fleet_go/pkg/logger"
)

// RadioSession possui o link de rádio com um drone físico. Os callbacks do
// link são traduzidos 1:1 para eventos; o payload de message é o frame bruto.
type RadioSession struct {
	uri    string
	driver radio.Driver
	bus    *eventbus.Bus[[]byte]

	mu   sync.Mutex
	link radio.Link
}

// NewRadioSession cria a sessão; inscreva os handlers antes de Connect
func NewRadioSession(uri string, driver radio.Driver) *RadioSession {
	return &RadioSession{
		uri:    uri,
		driver: driver,
		bus:    eventbus.New[[]byte](),
	}
}

// URI é a identidade da sessão no registro de drones
func (s *RadioSession) URI() string { return s.uri }

// Bus retorna o barramento de eventos da sessão
func (s *RadioSession) Bus() *eventbus.Bus[[]byte] { return s.bus }

// Connect abre o link de rádio
func (s *RadioSession) Connect() error {
	link, err := s.driver.Open(s.uri, radio.Callbacks{
		Connected: func(string) {
			s.bus.Emit(eventbus.Event[[]byte]{Kind: eventbus.Connection})
		},
		Disconnected: func(string) {
			s.bus.Emit(eventbus.Event[[]byte]{Kind: eventbus.Disconnection})
		},
		ConnectionFailed: func(_ string, err error) {
			s.bus.Emit(eventbus.Event[[]byte]{Kind: eventbus.Error, Err: fmt.Errorf("falha de conexão: %w", err)})
		},
		ConnectionLost: func(_ string, err error) {
			s.bus.Emit(eventbus.Event[[]byte]{Kind: eventbus.Error, Err: fmt.Errorf("conexão perdida: %w", err)})
		},
		PacketReceived: func(_ string, data []byte) {
			s.bus.Emit(eventbus.Event[[]byte]{Kind: eventbus.Message, Payload: data})
		},
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.link = link
	s.mu.Unlock()
	return nil
}

// Send envia um comando como opcode de um byte. Tipos fora da tabela de
// comandos são registrados e descartados.
func (s *RadioSession) Send(msg models.Message) error {
	frame, err := EncodeCommand(msg.Type)
	if errors.Is(err, ErrUnknownCommand) {
		logger.Warnf("Comando %q não suportado pelo rádio (%s); descartado", msg.Type, s.uri)
		return nil
	}

	s.mu.Lock()
	link := s.link
	s.mu.Unlock()
	if link == nil {
		return radio.ErrLinkClosed
	}
	return link.Send(frame)
}

// ForceClose fecha o link de rádio
func (s *RadioSession) ForceClose() {
	s.mu.Lock()
	link := s.link
	s.mu.Unlock()
	if link != nil {
		link.Close()
	}
}
