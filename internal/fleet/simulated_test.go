package fleet

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"fleet_go/internal/models"
	"fleet_go/pkg/clock"
)

func launchSimulated(t *testing.T, store *memStore) (*SimulatedController, *relayRecorder, <-chan struct{}) {
	t.Helper()
	relay := newRelayRecorder()
	deps := Deps{
		Relay:    relay,
		Clock:    clock.Fake(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		Settings: testMissionSettings(),
	}
	if store != nil {
		deps.Store = store
	}
	c := NewSimulatedController(SimulatedConfig{Host: "127.0.0.1", Port: 0, MaxDrones: 4}, deps)
	done, err := c.Launch()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Stop)
	return c, relay, done
}

func dialDrone(t *testing.T, c *SimulatedController) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", c.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, conn net.Conn, r *bufio.Reader) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(line)
}

func TestSimulatedPulseDiff(t *testing.T) {
	c, relay, _ := launchSimulated(t, nil)
	conn, _ := dialDrone(t, c)

	conn.Write([]byte(`{"type":"pulse","data":{"name":"fake_drone_1","battery":80,"state":"onTheGround","real":true}}` + "\n"))
	first := decodeMap(t, relay.waitFor(t, models.TypePulse))
	if first["battery"] != 80.0 || first["real"] != false {
		t.Errorf("first pulse = %v", first)
	}

	conn.Write([]byte(`{"type":"pulse","data":{"name":"fake_drone_1","battery":80}}` + "\n"))
	second := decodeMap(t, relay.waitFor(t, models.TypePulse))
	if len(second) != 2 || second["name"] != "fake_drone_1" {
		t.Errorf("heartbeat diff = %v, want only name and timestamp", second)
	}
	if _, ok := second["timestamp"]; !ok {
		t.Error("timestamp missing from diff")
	}

	drones := c.Drones()
	if len(drones) != 1 || drones[0].Real {
		t.Errorf("registry = %+v", drones)
	}
}

func TestSimulatedPulseTimestamp(t *testing.T) {
	serverNow := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	tests := []struct {
		name  string
		frame string
		want  int64
	}{
		{"drone stamp kept", `{"type":"pulse","data":{"name":"a","timestamp":42}}`, 42},
		{"server stamp when missing", `{"type":"pulse","data":{"name":"a","battery":50}}`, serverNow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, relay, _ := launchSimulated(t, nil)
			conn, _ := dialDrone(t, c)
			conn.Write([]byte(tt.frame + "\n"))
			relay.waitFor(t, models.TypePulse)

			drones := c.Drones()
			if len(drones) != 1 {
				t.Fatalf("registry = %+v", drones)
			}
			if drones[0].Timestamp != tt.want {
				t.Errorf("timestamp = %d, want %d", drones[0].Timestamp, tt.want)
			}
		})
	}
}

func TestSimulatedForwardsOtherDroneMessages(t *testing.T) {
	c, relay, _ := launchSimulated(t, nil)
	conn, _ := dialDrone(t, c)

	conn.Write([]byte(`{"type":"log","data":{"line":"hello"}}` + "\n"))
	if m := relay.waitFor(t, "log"); !strings.Contains(string(m.Data), "hello") {
		t.Errorf("forwarded = %s", m.Data)
	}
}

func TestSimulatedStartMissionRejectedWithoutDrones(t *testing.T) {
	c, relay, _ := launchSimulated(t, nil)

	start, _ := models.NewMessage(models.TypeStartMission, models.StartMissionData{})
	c.HandleCommand(start)

	pulse := decodeMap(t, relay.waitFor(t, models.TypeMissionPulse))
	if pulse["status"] != string(models.StatusRejected) {
		t.Errorf("pulse = %v", pulse)
	}
	if _, ok := c.ActiveMission(); ok {
		t.Error("rejected mission kept as active")
	}
}

func TestSimulatedMissionLifecycle(t *testing.T) {
	store := &memStore{}
	c, relay, _ := launchSimulated(t, store)
	conn, r := dialDrone(t, c)

	conn.Write([]byte(`{"type":"pulse","data":{"name":"a","position":[2,3,0],"state":"exploring"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)

	start, _ := models.NewMessage(models.TypeStartMission, models.StartMissionData{
		DronesPositions: map[string]models.Vec2{"a": {X: 1, Y: 1}},
	})
	c.HandleCommand(start)
	relay.waitFor(t, models.TypeMission)
	if line := readLine(t, conn, r); !strings.Contains(line, `"startMission"`) {
		t.Errorf("drone received %q", line)
	}

	conn.Write([]byte(`{"type":"pulse","data":{"name":"a","position":[2,3,0],"yaw":0,"ranges":[100,9999,9999,9999]}}` + "\n"))
	mp := decodeMap(t, relay.waitFor(t, models.TypeMissionPulse))
	points, _ := mp["points"].([]interface{})
	if len(points) != 1 {
		t.Fatalf("missionPulse points = %v", mp["points"])
	}
	value := points[0].(map[string]interface{})["value"].(map[string]interface{})
	if value["x"] != 101.0 || value["y"] != 1.0 {
		t.Errorf("point = %v, want (101, 1)", value)
	}

	m, ok := c.ActiveMission()
	if !ok || m.Status != models.StatusInProgress {
		t.Fatalf("active mission = %+v, %v", m, ok)
	}

	conn.Close()
	disc := decodeMap(t, relay.waitFor(t, models.TypeDisconnect))
	if disc["name"] != "a" {
		t.Errorf("disconnect = %v", disc)
	}
	final := decodeMap(t, relay.waitFor(t, models.TypeMissionPulse))
	if final["status"] != string(models.StatusFailed) {
		t.Errorf("final pulse = %v", final)
	}
	if _, ok := c.ActiveMission(); ok {
		t.Error("mission still active after disconnect")
	}

	store.mu.Lock()
	saved := store.saved[m.ID]
	store.mu.Unlock()
	if saved.Status != models.StatusFailed {
		t.Errorf("persisted status = %s", saved.Status)
	}
	if len(c.Drones()) != 0 {
		t.Errorf("registry not cleared: %+v", c.Drones())
	}
}

func TestSimulatedTargetedCommand(t *testing.T) {
	c, relay, _ := launchSimulated(t, nil)
	connA, rA := dialDrone(t, c)
	connB, rB := dialDrone(t, c)

	connA.Write([]byte(`{"type":"pulse","data":{"name":"a"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)
	connB.Write([]byte(`{"type":"pulse","data":{"name":"b"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)

	land, _ := models.NewMessage(models.TypeLand, models.CommandData{Name: "b"})
	c.HandleCommand(land)
	if line := readLine(t, connB, rB); !strings.Contains(line, `"land"`) {
		t.Errorf("b received %q", line)
	}

	all, _ := models.NewMessage(models.TypeReturnToBase, models.CommandData{Name: models.AllDrones})
	c.HandleCommand(all)
	if line := readLine(t, connA, rA); !strings.Contains(line, `"returnToBase"`) {
		t.Errorf("a received %q, want returnToBase first", line)
	}
	if line := readLine(t, connB, rB); !strings.Contains(line, `"returnToBase"`) {
		t.Errorf("b received %q", line)
	}
}

func TestSimulatedStopIsIdempotent(t *testing.T) {
	c, relay, done := launchSimulated(t, nil)
	conn, _ := dialDrone(t, c)
	conn.Write([]byte(`{"type":"pulse","data":{"name":"a"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)

	c.Stop()
	c.Stop()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("accept loop did not exit")
	}
	relay.assertNone(t, models.TypeDisconnect, 100*time.Millisecond)
	if n := len(c.Drones()); n != 0 {
		t.Errorf("registry has %d drones after Stop", n)
	}
	if _, err := net.DialTimeout("tcp", c.Addr().String(), 200*time.Millisecond); err == nil {
		t.Error("listener still accepting after Stop")
	}
}

func TestSimulatedStopFailsActiveMission(t *testing.T) {
	store := &memStore{}
	c, relay, _ := launchSimulated(t, store)
	conn, _ := dialDrone(t, c)
	conn.Write([]byte(`{"type":"pulse","data":{"name":"a","state":"exploring"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)

	start, _ := models.NewMessage(models.TypeStartMission, nil)
	c.HandleCommand(start)
	relay.waitFor(t, models.TypeMission)

	c.Stop()
	final := decodeMap(t, relay.waitFor(t, models.TypeMissionPulse))
	if final["status"] != string(models.StatusFailed) {
		t.Errorf("final status = %v, want failed", final["status"])
	}
	if _, ok := c.ActiveMission(); ok {
		t.Error("mission still active after Stop")
	}
}

func TestSimulatedStopMissionEndsAndReachesDrones(t *testing.T) {
	store := &memStore{}
	c, relay, _ := launchSimulated(t, store)
	connA, rA := dialDrone(t, c)
	connB, rB := dialDrone(t, c)
	connA.Write([]byte(`{"type":"pulse","data":{"name":"a","state":"exploring"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)
	connB.Write([]byte(`{"type":"pulse","data":{"name":"b","state":"exploring"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)

	start, _ := models.NewMessage(models.TypeStartMission, nil)
	c.HandleCommand(start)
	relay.waitFor(t, models.TypeMission)
	readLine(t, connA, rA)
	readLine(t, connB, rB)
	m, _ := c.ActiveMission()

	connA.Write([]byte(`{"type":"pulse","data":{"name":"a","position":[0,0,0],"yaw":0,"ranges":[100,9999,9999,9999]}}` + "\n"))
	relay.waitFor(t, models.TypeMissionPulse)

	stop, _ := models.NewMessage(models.TypeStopMission, nil)
	c.HandleCommand(stop)

	final := decodeMap(t, relay.waitFor(t, models.TypeMissionPulse))
	if final["status"] != string(models.StatusDone) {
		t.Errorf("final status = %v, want done", final["status"])
	}
	if shapes, _ := final["shapes"].([]interface{}); len(shapes) != 1 {
		t.Errorf("final shapes = %v", final["shapes"])
	}
	for name, pair := range map[string]struct {
		conn net.Conn
		r    *bufio.Reader
	}{"a": {connA, rA}, "b": {connB, rB}} {
		if line := readLine(t, pair.conn, pair.r); !strings.Contains(line, `"stopMission"`) {
			t.Errorf("%s received %q", name, line)
		}
	}
	if _, ok := c.ActiveMission(); ok {
		t.Error("mission still active after stopMission")
	}

	store.mu.Lock()
	saved := store.saved[m.ID]
	store.mu.Unlock()
	if saved.Status != models.StatusDone {
		t.Errorf("persisted status = %s", saved.Status)
	}
}

func TestSimulatedReturnToBaseKeepsMission(t *testing.T) {
	c, relay, _ := launchSimulated(t, nil)
	conn, r := dialDrone(t, c)
	conn.Write([]byte(`{"type":"pulse","data":{"name":"a","state":"exploring"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)

	start, _ := models.NewMessage(models.TypeStartMission, nil)
	c.HandleCommand(start)
	relay.waitFor(t, models.TypeMission)
	readLine(t, conn, r)

	rtb, _ := models.NewMessage(models.TypeReturnToBase, nil)
	c.HandleCommand(rtb)
	if line := readLine(t, conn, r); !strings.Contains(line, `"returnToBase"`) {
		t.Errorf("drone received %q", line)
	}

	relay.assertNone(t, models.TypeMissionPulse, 50*time.Millisecond)
	m, ok := c.ActiveMission()
	if !ok || m.Status != models.StatusInProgress {
		t.Errorf("active mission = %+v, %v", m, ok)
	}
}

func TestSimulatedUnknownCommandForwarded(t *testing.T) {
	c, relay, _ := launchSimulated(t, nil)
	conn, r := dialDrone(t, c)
	conn.Write([]byte(`{"type":"pulse","data":{"name":"a"}}` + "\n"))
	relay.waitFor(t, models.TypePulse)

	flip, _ := models.NewMessage("flip", models.CommandData{Name: "a"})
	c.HandleCommand(flip)
	if line := readLine(t, conn, r); !strings.Contains(line, `"flip"`) {
		t.Errorf("drone received %q", line)
	}
}
