package dispatch

import (
	"reflect"
	"testing"

	"fleet_go/internal/models"
)

type fakeController struct {
	kind     models.MissionType
	drones   []models.Drone
	mission  *models.Mission
	commands []models.MessageType
}

func (f *fakeController) Type() models.MissionType { return f.kind }

func (f *fakeController) HandleCommand(msg models.Message) {
	f.commands = append(f.commands, msg.Type)
}

func (f *fakeController) Drones() []models.Drone { return f.drones }

func (f *fakeController) ActiveMission() (models.Mission, bool) {
	if f.mission == nil {
		return models.Mission{}, false
	}
	return *f.mission, true
}

func TestHandleCommandRouting(t *testing.T) {
	sim := &fakeController{kind: models.MissionSimulated}
	phys := &fakeController{kind: models.MissionPhysical}
	d := New(sim, nil, phys)

	d.HandleCommand(models.Message{Type: models.TypeTakeOff})
	d.HandleCommand(models.Message{Type: models.TypeLoadProject})

	if want := []models.MessageType{models.TypeTakeOff}; !reflect.DeepEqual(sim.commands, want) {
		t.Errorf("simulated got %v, want %v", sim.commands, want)
	}
	if want := []models.MessageType{models.TypeTakeOff, models.TypeLoadProject}; !reflect.DeepEqual(phys.commands, want) {
		t.Errorf("physical got %v, want %v", phys.commands, want)
	}
}

func TestInitialMessages(t *testing.T) {
	sim := &fakeController{
		kind:    models.MissionSimulated,
		drones:  []models.Drone{{Name: "s1"}, {Name: "s2"}},
		mission: &models.Mission{ID: "m1", Status: models.StatusInProgress},
	}
	phys := &fakeController{
		kind:   models.MissionPhysical,
		drones: []models.Drone{{Name: "udp://127.0.0.1:19850", Real: true}},
	}
	d := New(sim, phys)

	msgs := d.InitialMessages()
	var types []models.MessageType
	for _, m := range msgs {
		types = append(types, m.Type)
	}
	want := []models.MessageType{models.TypePulse, models.TypePulse, models.TypePulse, models.TypeMission}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("types = %v, want %v", types, want)
	}

	drones := d.Drones()
	if len(drones[models.MissionSimulated]) != 2 || len(drones[models.MissionPhysical]) != 1 {
		t.Errorf("Drones = %+v", drones)
	}
	if missions := d.ActiveMissions(); len(missions) != 1 || missions[0].ID != "m1" {
		t.Errorf("ActiveMissions = %+v", missions)
	}
}

func TestUntypedStartOnlyReachesFleetsWithDrones(t *testing.T) {
	start, err := models.NewMessage(models.TypeStartMission, models.StartMissionData{})
	if err != nil {
		t.Fatal(err)
	}
	typed, _ := models.NewMessage(models.TypeStartMission, models.StartMissionData{Type: models.MissionSimulated})

	tests := []struct {
		name      string
		msg       models.Message
		simDrones []models.Drone
		physDrone []models.Drone
		wantSim   int
		wantPhys  int
	}{
		{name: "only physical has drones", msg: start, physDrone: []models.Drone{{Name: "p"}}, wantPhys: 1},
		{name: "both have drones", msg: start, simDrones: []models.Drone{{Name: "s"}}, physDrone: []models.Drone{{Name: "p"}}, wantSim: 1, wantPhys: 1},
		{name: "no drones anywhere", msg: start, wantSim: 1},
		{name: "typed start reaches every fleet", msg: typed, physDrone: []models.Drone{{Name: "p"}}, wantSim: 1, wantPhys: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := &fakeController{kind: models.MissionSimulated, drones: tt.simDrones}
			phys := &fakeController{kind: models.MissionPhysical, drones: tt.physDrone}
			New(sim, phys).HandleCommand(tt.msg)

			if len(sim.commands) != tt.wantSim || len(phys.commands) != tt.wantPhys {
				t.Errorf("simulated got %v, physical got %v", sim.commands, phys.commands)
			}
		})
	}
}
