package session

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"fleet_go/internal/eventbus"
	"fleet_go/internal/models"
)

// tcpPair retorna a sessão (lado servidor) e o lado do drone
func tcpPair(t *testing.T) (*TCPSession, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case c := <-accepted:
		return NewTCPSession(c), client
	case <-time.After(2 * time.Second):
		t.Fatal("accept timeout")
	}
	return nil, nil
}

type collected struct {
	messages     chan models.Message
	connected    chan struct{}
	disconnected chan struct{}
}

func collect(s *TCPSession) *collected {
	c := &collected{
		messages:     make(chan models.Message, 16),
		connected:    make(chan struct{}, 1),
		disconnected: make(chan struct{}, 1),
	}
	s.Bus().Subscribe(eventbus.Message, func(ev eventbus.Event[models.Message]) { c.messages <- ev.Payload })
	s.Bus().Subscribe(eventbus.Connection, func(eventbus.Event[models.Message]) { c.connected <- struct{}{} })
	s.Bus().Subscribe(eventbus.Disconnection, func(eventbus.Event[models.Message]) { c.disconnected <- struct{}{} })
	return c
}

func (c *collected) next(t *testing.T) models.Message {
	t.Helper()
	select {
	case m := <-c.messages:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	return models.Message{}
}

func (c *collected) waitDisconnect(t *testing.T) {
	t.Helper()
	select {
	case <-c.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnection")
	}
}

func TestTCPSessionSplitsBatchedFrames(t *testing.T) {
	s, drone := tcpPair(t)
	c := collect(s)
	s.Connect()
	<-c.connected

	drone.Write([]byte(`{"type":"pulse","data":{"name":"a"}}` + "\n" + `{"type":"pulse","data":{"name":"b"}}` + "\n"))
	if m := c.next(t); m.Target() != "a" {
		t.Errorf("first frame target = %s", m.Target())
	}
	if m := c.next(t); m.Target() != "b" {
		t.Errorf("second frame target = %s", m.Target())
	}
}

func TestTCPSessionBuffersPartialFrames(t *testing.T) {
	s, drone := tcpPair(t)
	c := collect(s)
	s.Connect()

	drone.Write([]byte(`{"type":"pulse","da`))
	time.Sleep(20 * time.Millisecond)
	drone.Write([]byte(`ta":{"name":"late"}}` + "\n"))

	m := c.next(t)
	if m.Type != models.TypePulse || m.Target() != "late" {
		t.Errorf("message = %+v", m)
	}
}

func TestTCPSessionDropsMalformedFrames(t *testing.T) {
	s, drone := tcpPair(t)
	c := collect(s)
	s.Connect()

	drone.Write([]byte("not json\n{\"data\":{}}\n" + `{"type":"land"}`))

	if m := c.next(t); m.Type != models.TypeLand {
		t.Errorf("message = %+v, want land", m)
	}
	select {
	case m := <-c.messages:
		t.Errorf("unexpected message %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTCPSessionDisconnectsOnEOF(t *testing.T) {
	s, drone := tcpPair(t)
	c := collect(s)
	s.Connect()

	drone.Close()
	c.waitDisconnect(t)
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed")
	}
}

func TestTCPSessionSendAndForceClose(t *testing.T) {
	s, drone := tcpPair(t)
	c := collect(s)
	s.Connect()

	msg, _ := models.NewMessage(models.TypeStartMission, nil)
	if err := s.Send(msg); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(drone).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(line) != `{"type":"startMission"}` {
		t.Errorf("line = %q", line)
	}

	s.ForceClose()
	s.ForceClose()
	c.waitDisconnect(t)
}
