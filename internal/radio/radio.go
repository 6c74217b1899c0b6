// Package radio abstrai o rádio da frota física: presença do dongle,
// varredura de endereços e abertura de links por URI.
package radio

import (
	"context"
	"errors"
)

// ErrLinkClosed é retornado por Send após Close
var ErrLinkClosed = errors.New("link de rádio fechado")

// Callbacks são chamados pelo driver na goroutine do link. Campos nil são ignorados.
type Callbacks struct {
	Connected        func(uri string)
	Disconnected     func(uri string)
	ConnectionFailed func(uri string, err error)
	ConnectionLost   func(uri string, err error)
	PacketReceived   func(uri string, data []byte)
}

// Link é um canal aberto com um drone
type Link interface {
	URI() string
	Send(data []byte) error
	Close() error
}

// Driver é o hardware (ou a ponte) de rádio
type Driver interface {
	// DonglePresent indica se o hardware de rádio está disponível
	DonglePresent(ctx context.Context) bool
	// Scan retorna as URIs que responderam na faixa de endereços
	Scan(ctx context.Context) ([]string, error)
	// Open abre um link; o resultado da conexão chega pelos callbacks
	Open(uri string, cb Callbacks) (Link, error)
}
