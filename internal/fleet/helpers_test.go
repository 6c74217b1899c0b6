package fleet

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/brunoga/deep"

	"fleet_go/internal/mission"
	"fleet_go/internal/models"
	"fleet_go/internal/radio"
)

// relayRecorder guarda tudo o que seria enviado ao painel
type relayRecorder struct {
	ch chan models.Message
}

func newRelayRecorder() *relayRecorder {
	return &relayRecorder{ch: make(chan models.Message, 256)}
}

func (r *relayRecorder) Broadcast(msg models.Message) { r.ch <- msg }

// waitFor descarta mensagens até encontrar uma do tipo pedido
func (r *relayRecorder) waitFor(t *testing.T, typ models.MessageType) models.Message {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case m := <-r.ch:
			if m.Type == typ {
				return m
			}
		case <-deadline:
			t.Fatalf("no %s message", typ)
		}
	}
}

func (r *relayRecorder) assertNone(t *testing.T, typ models.MessageType, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case m := <-r.ch:
			if m.Type == typ {
				t.Fatalf("unexpected %s message: %s", typ, m.Data)
			}
		case <-deadline:
			return
		}
	}
}

func decodeMap(t *testing.T, m models.Message) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(m.Data, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

type memStore struct {
	mu    sync.Mutex
	saved map[string]models.Mission
}

func (s *memStore) SaveMission(_ context.Context, m models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]models.Mission)
	}
	s.saved[m.ID] = deep.MustCopy(m)
	return nil
}

func testMissionSettings() mission.Settings {
	s := mission.DefaultSettings()
	s.Simulated = mission.TypeParams{Scale: 1, MaxRange: 9999}
	s.Physical = mission.TypeParams{Scale: 1, MaxRange: 9999}
	return s
}

// fakeRadio simula o driver: as URIs em uris respondem à varredura e os
// callbacks de cada link ficam disponíveis para o teste
type fakeRadio struct {
	mu      sync.Mutex
	present bool
	uris    []string
	links   map[string]*fakeRadioLink
	opened  chan string
}

type fakeRadioLink struct {
	uri string
	cb  radio.Callbacks

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeRadio(present bool, uris ...string) *fakeRadio {
	return &fakeRadio{
		present: present,
		uris:    uris,
		links:   make(map[string]*fakeRadioLink),
		opened:  make(chan string, 16),
	}
}

func (f *fakeRadio) setPresent(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.present = v
}

func (f *fakeRadio) DonglePresent(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present
}

func (f *fakeRadio) Scan(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uris...), nil
}

func (f *fakeRadio) Open(uri string, cb radio.Callbacks) (radio.Link, error) {
	l := &fakeRadioLink{uri: uri, cb: cb}
	f.mu.Lock()
	f.links[uri] = l
	f.mu.Unlock()
	f.opened <- uri
	return l, nil
}

func (f *fakeRadio) link(uri string) *fakeRadioLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[uri]
}

func (f *fakeRadio) waitOpened(t *testing.T) string {
	t.Helper()
	select {
	case uri := <-f.opened:
		return uri
	case <-time.After(3 * time.Second):
		t.Fatal("no link opened")
	}
	return ""
}

func (l *fakeRadioLink) URI() string { return l.uri }

func (l *fakeRadioLink) Send(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, b)
	return nil
}

// Close avisa a desconexão em outra goroutine, como um driver real
func (l *fakeRadioLink) Close() error {
	l.mu.Lock()
	already := l.closed
	l.closed = true
	l.mu.Unlock()
	if !already && l.cb.Disconnected != nil {
		go l.cb.Disconnected(l.uri)
	}
	return nil
}

func (l *fakeRadioLink) sentBytes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.sent...)
}
