// Package plc exporta o estado das frotas para um CLP S7 da estação base.
package plc

import (
	"fmt"
	"sync"
	"time"

	"github.com/robinson/gos7"

	"fleet_go/internal/config"
	"fleet_go/pkg/logger"
)

// statusLink grava a imagem do bloco de status no CLP
type statusLink interface {
	WriteStatus(block []byte) error
	Close()
}

// s7Link grava no DB configurado via gos7. A conexão é aberta na primeira
// escrita e descartada em qualquer erro; a escrita seguinte reconecta.
type s7Link struct {
	cfg config.PLCConfig

	mu      sync.Mutex
	handler *gos7.TCPClientHandler
	client  gos7.Client
}

func newS7Link(cfg config.PLCConfig) *s7Link {
	return &s7Link{cfg: cfg}
}

func (l *s7Link) dialLocked() error {
	handler := gos7.NewTCPClientHandler(l.cfg.Host, l.cfg.Rack, l.cfg.Slot)
	handler.Timeout = l.cfg.Timeout
	handler.IdleTimeout = 3*l.cfg.UpdateRate + 10*time.Second

	if err := handler.Connect(); err != nil {
		return fmt.Errorf("erro ao conectar ao CLP %s: %w", l.cfg.Host, err)
	}
	l.handler = handler
	l.client = gos7.NewClient(handler)
	logger.Infof("Conectado ao CLP em %s (rack %d, slot %d), DB%d",
		l.cfg.Host, l.cfg.Rack, l.cfg.Slot, l.cfg.DBNumber)
	return nil
}

func (l *s7Link) dropLocked() {
	if l.handler != nil {
		l.handler.Close()
	}
	l.handler = nil
	l.client = nil
}

// WriteStatus grava o bloco a partir do byte 0 do DB
func (l *s7Link) WriteStatus(block []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client == nil {
		if err := l.dialLocked(); err != nil {
			return err
		}
	}
	if err := l.client.AGWriteDB(l.cfg.DBNumber, 0, len(block), block); err != nil {
		l.dropLocked()
		return fmt.Errorf("erro ao escrever DB%d: %w", l.cfg.DBNumber, err)
	}
	return nil
}

// Close fecha a conexão, se houver
func (l *s7Link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handler != nil {
		l.dropLocked()
		logger.Info("Desconectado do CLP")
	}
}
