package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fleet_go/internal/models"
)

type fakeSource struct {
	mu       sync.Mutex
	initial  []models.Message
	received []models.Message
	got      chan models.Message
}

func newFakeSource(initial ...models.Message) *fakeSource {
	return &fakeSource{initial: initial, got: make(chan models.Message, 16)}
}

func (f *fakeSource) InitialMessages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initial
}

func (f *fakeSource) HandleCommand(msg models.Message) {
	f.mu.Lock()
	f.received = append(f.received, msg)
	f.mu.Unlock()
	f.got <- msg
}

func mustMessage(t *testing.T, typ models.MessageType, data interface{}) models.Message {
	t.Helper()
	msg, err := models.NewMessage(typ, data)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func startHub(t *testing.T, src Source) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	hub.SetSource(src)
	go hub.Run()
	srv := httptest.NewServer(NewHandler(hub))
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewClientReceivesInitialState(t *testing.T) {
	src := newFakeSource(
		mustMessage(t, models.TypePulse, map[string]interface{}{"name": "d1"}),
		mustMessage(t, models.TypeMission, models.Mission{ID: "m1"}),
	)
	_, srv := startHub(t, src)
	conn := dial(t, srv)

	if got := readMessage(t, conn); got.Type != models.TypePulse {
		t.Errorf("first message = %s", got.Type)
	}
	if got := readMessage(t, conn); got.Type != models.TypeMission || !strings.Contains(string(got.Data), `"m1"`) {
		t.Errorf("second message = %s %s", got.Type, got.Data)
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub, srv := startHub(t, newFakeSource())
	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, hub, 2)

	hub.Broadcast(mustMessage(t, models.TypeDisconnect, models.DisconnectData{Name: "d1"}))

	for _, conn := range []*websocket.Conn{a, b} {
		if got := readMessage(t, conn); got.Type != models.TypeDisconnect {
			t.Errorf("got %s", got.Type)
		}
	}
}

func TestCommandsAreForwardedInOrder(t *testing.T) {
	src := newFakeSource()
	hub, srv := startHub(t, src)
	conn := dial(t, srv)
	waitClients(t, hub, 1)

	frames := []string{
		`{"type":"startMission","data":{"type":"simulated"}}`,
		`{"type":"pulse","data":{"name":"d1"}}`,
		`not json`,
		`{"type":"flip","data":{"name":"d1"}}`,
		`{"type":"land","data":{"name":"d1"}}`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []models.MessageType{models.TypeStartMission, "flip", models.TypeLand} {
		select {
		case got := <-src.got:
			if got.Type != want {
				t.Errorf("command = %s, want %s", got.Type, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("command %s not forwarded", want)
		}
	}
	select {
	case extra := <-src.got:
		t.Errorf("unexpected command %s", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t, newFakeSource())
	conn := dial(t, srv)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    models.MessageType
		wantErr bool
	}{
		{in: `{"type":"takeOff"}`, want: models.TypeTakeOff},
		{in: `{"type":"loadProject","data":{"type":"sandbox","code":"x"}}`, want: models.TypeLoadProject},
		{in: `{"type":"flip","data":{"name":"a"}}`, want: "flip"},
		{in: `{"type":"pulse","data":{}}`, wantErr: true},
		{in: `{"type":"missionPulse"}`, wantErr: true},
		{in: `{"data":{"name":"a"}}`, wantErr: true},
		{in: `{`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseCommand([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%s) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got.Type != tt.want {
			t.Errorf("ParseCommand(%s) = %s", tt.in, got.Type)
		}
	}
}

func TestHealthReportsHubCounters(t *testing.T) {
	src := newFakeSource()
	hub, srv := startHub(t, src)
	conn := dial(t, srv)
	waitClients(t, hub, 1)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"takeOff"}`))
	<-src.got
	hub.Broadcast(mustMessage(t, models.TypeDisconnect, models.DisconnectData{Name: "d1"}))
	readMessage(t, conn)

	rec := httptest.NewRecorder()
	NewHandler(hub).HealthHandler()(rec, httptest.NewRequest("GET", "/ws/health", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status        string `json:"status"`
		Clients       int    `json:"clients"`
		TotalMessages int64  `json:"totalMessages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Clients != 1 || body.TotalMessages != 1 {
		t.Errorf("health = %+v", body)
	}
}

func TestHubStatsCongestion(t *testing.T) {
	tests := []struct {
		st   HubStats
		want bool
	}{
		{st: HubStats{}, want: false},
		{st: HubStats{PendingBroadcasts: 192}, want: true},
		{st: HubStats{PendingCommands: 75}, want: true},
		{st: HubStats{PendingBroadcasts: 100, PendingCommands: 10}, want: false},
	}
	for _, tt := range tests {
		if got := tt.st.congested(256, 100); got != tt.want {
			t.Errorf("congested(%+v) = %v, want %v", tt.st, got, tt.want)
		}
	}
}
