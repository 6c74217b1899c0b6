package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"fleet_go/pkg/logger"
)

// pingByte é respondido pela ponte e pelos drones; não colide com os
// discriminadores de telemetria
const pingByte = 0xFF

const uriScheme = "udp://"

// UDPDriver fala com uma ponte de rádio que expõe cada endereço de drone
// como uma porta UDP (BasePort .. BasePort+Count-1) e o dongle como ControlPort.
type UDPDriver struct {
	Host        string
	ControlPort int
	BasePort    int
	Count       int
	PingTimeout time.Duration
}

// NewUDPDriver cria o driver com os parâmetros da ponte
func NewUDPDriver(host string, controlPort, basePort, count int, pingTimeout time.Duration) *UDPDriver {
	if pingTimeout <= 0 {
		pingTimeout = 500 * time.Millisecond
	}
	return &UDPDriver{
		Host:        host,
		ControlPort: controlPort,
		BasePort:    basePort,
		Count:       count,
		PingTimeout: pingTimeout,
	}
}

// URI monta a URI de rádio para uma porta
func URI(host string, port int) string {
	return fmt.Sprintf("%s%s", uriScheme, net.JoinHostPort(host, fmt.Sprint(port)))
}

func addrFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", fmt.Errorf("URI de rádio inválida: %q", uri)
	}
	return strings.TrimPrefix(uri, uriScheme), nil
}

// DonglePresent envia um ping à porta de controle da ponte
func (d *UDPDriver) DonglePresent(ctx context.Context) bool {
	return d.ping(ctx, net.JoinHostPort(d.Host, fmt.Sprint(d.ControlPort)))
}

// Scan envia ping a todos os endereços em paralelo
func (d *UDPDriver) Scan(ctx context.Context) ([]string, error) {
	found := make([]bool, d.Count)
	var wg sync.WaitGroup
	for i := 0; i < d.Count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			found[i] = d.ping(ctx, net.JoinHostPort(d.Host, fmt.Sprint(d.BasePort+i)))
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var uris []string
	for i, ok := range found {
		if ok {
			uris = append(uris, URI(d.Host, d.BasePort+i))
		}
	}
	return uris, nil
}

func (d *UDPDriver) ping(ctx context.Context, addr string) bool {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return false
	}
	defer conn.Close()

	deadline := time.Now().Add(d.PingTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte{pingByte}); err != nil {
		return false
	}
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return false
		}
		if n == 1 && buf[0] == pingByte {
			return true
		}
	}
}

// Open abre o link e inicia a goroutine de leitura. Connected é chamado na
// primeira resposta ao ping; sem resposta em PingTimeout, ConnectionFailed.
func (d *UDPDriver) Open(uri string, cb Callbacks) (Link, error) {
	addr, err := addrFromURI(uri)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout("udp", addr, d.PingTimeout)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir link %s: %w", uri, err)
	}

	l := &udpLink{uri: uri, conn: conn, cb: cb, pingTimeout: d.PingTimeout}
	if _, err := conn.Write([]byte{pingByte}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("erro ao contatar %s: %w", uri, err)
	}
	go l.readLoop()
	return l, nil
}

type udpLink struct {
	uri         string
	conn        net.Conn
	cb          Callbacks
	pingTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (l *udpLink) URI() string { return l.uri }

func (l *udpLink) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	if _, err := l.conn.Write(data); err != nil {
		return fmt.Errorf("erro ao enviar para %s: %w", l.uri, err)
	}
	return nil
}

func (l *udpLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close()
}

func (l *udpLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// idleTimeout é o silêncio máximo de um link conectado antes de considerá-lo perdido
func (l *udpLink) idleTimeout() time.Duration {
	if d := 10 * l.pingTimeout; d > 2*time.Second {
		return d
	}
	return 2 * time.Second
}

func (l *udpLink) readLoop() {
	buf := make([]byte, 512)
	connected := false

	l.conn.SetReadDeadline(time.Now().Add(l.pingTimeout))
	for {
		n, err := l.conn.Read(buf)
		if err != nil {
			switch {
			case !connected && !l.isClosed():
				if l.cb.ConnectionFailed != nil {
					l.cb.ConnectionFailed(l.uri, err)
				}
			case connected && !l.isClosed() && !errors.Is(err, net.ErrClosed):
				if l.cb.ConnectionLost != nil {
					l.cb.ConnectionLost(l.uri, err)
				}
			}
			l.Close()
			if connected && l.cb.Disconnected != nil {
				l.cb.Disconnected(l.uri)
			}
			return
		}

		if connected {
			l.conn.SetReadDeadline(time.Now().Add(l.idleTimeout()))
		}
		if n == 1 && buf[0] == pingByte {
			if !connected {
				connected = true
				l.conn.SetReadDeadline(time.Now().Add(l.idleTimeout()))
				logger.Debugf("Link %s conectado", l.uri)
				if l.cb.Connected != nil {
					l.cb.Connected(l.uri)
				}
			}
			continue
		}
		if !connected {
			continue
		}
		if l.cb.PacketReceived != nil {
			packet := make([]byte, n)
			copy(packet, buf[:n])
			l.cb.PacketReceived(l.uri, packet)
		}
	}
}
