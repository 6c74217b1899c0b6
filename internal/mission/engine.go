// Package mission funde as amostras dos drones em pontos de obstáculo,
// trajetórias e formas, e controla o ciclo de vida de uma missão.
package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brunoga/deep"
	"github.com/google/uuid"

	"fleet_go/internal/models"
	"fleet_go/pkg/clock"
	"fleet_go/pkg/logger"
)

var (
	// ErrMissionClosed é retornado para amostras recebidas após o fim da missão
	ErrMissionClosed = errors.New("missão encerrada")
	// ErrUnknownDrone é retornado para amostras de drones fora da missão
	ErrUnknownDrone = errors.New("drone não participa da missão")
)

// Store persiste o documento completo de uma missão (upsert por id).
// O documento continua sendo alterado pelo Engine depois da chamada:
// implementações que o retêm devem copiá-lo.
type Store interface {
	SaveMission(ctx context.Context, m models.Mission) error
}

// Notifier recebe as mensagens de missão destinadas ao painel
type Notifier func(models.Message)

// Settings reúne as constantes geométricas e de tempo das missões
type Settings struct {
	Simulated         TypeParams
	Physical          TypeParams
	DedupSeparation   float64
	PathMinDistance   float64
	ShapeLinkDistance float64
	SettlingPeriod    time.Duration
}

// DefaultSettings retorna as constantes padrão
func DefaultSettings() Settings {
	return Settings{
		Simulated:         TypeParams{Scale: 0.01, MaxRange: 300},
		Physical:          TypeParams{Scale: 0.001, MaxRange: 2000},
		DedupSeparation:   0.05,
		PathMinDistance:   0.1,
		ShapeLinkDistance: 0.25,
		SettlingPeriod:    5 * time.Second,
	}
}

// Params retorna as constantes do tipo de frota
func (s Settings) Params(t models.MissionType) TypeParams {
	if t == models.MissionPhysical {
		return s.Physical
	}
	return s.Simulated
}

// Deps são os colaboradores do Engine. Store e Notify podem ser nil.
type Deps struct {
	Store    Store
	Notify   Notifier
	Clock    clock.Clock
	Settings Settings
}

// Engine é uma missão em andamento. Todas as mutações passam pelo mutex.
type Engine struct {
	mu sync.Mutex

	mission  models.Mission
	params   TypeParams
	deps     Deps
	start    time.Time
	dedup    *SpatialDedup
	initial  map[string]models.Vec2
	operator map[string]models.Vec2
	states   map[string]models.DroneState
	lastPath map[string]models.Vec2
}

// NewEngine cria uma missão com os drones informados. initial é a posição
// de cada drone no momento do início (referencial da missão) e operator o
// deslocamento de posicionamento informado pelo operador. Sem drones, a
// missão é rejeitada, uma única notificação é emitida e o Engine fica inerte.
func NewEngine(drones []models.Drone, t models.MissionType, initial, operator map[string]models.Vec2, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	e := &Engine{
		params:   deps.Settings.Params(t),
		deps:     deps,
		start:    deps.Clock.Now(),
		dedup:    NewSpatialDedup(deps.Settings.DedupSeparation),
		initial:  make(map[string]models.Vec2),
		operator: make(map[string]models.Vec2),
		states:   make(map[string]models.DroneState),
		lastPath: make(map[string]models.Vec2),
	}

	if len(drones) == 0 {
		e.mission = models.Mission{Type: t, Status: models.StatusRejected}
		logger.Warnf("Missão %s rejeitada: nenhum drone conectado", t)
		e.notify(models.TypeMissionPulse, models.MissionPulse{Status: models.StatusRejected})
		return e
	}

	e.mission = models.Mission{
		ID:              uuid.NewString(),
		Timestamp:       e.start.UnixMilli(),
		Type:            t,
		Status:          models.StatusInProgress,
		Drones:          make(map[string]string, len(drones)),
		DronesPositions: make(map[string]models.Vec2, len(drones)),
		DronesPaths:     make(map[string][]models.Vec2, len(drones)),
		Shapes:          [][]models.Vec2{},
		Points:          []models.MissionPoint{},
	}
	for _, d := range drones {
		e.mission.Drones[d.Name] = ColorFor(d.Name)
		e.mission.DronesPaths[d.Name] = []models.Vec2{}
		e.mission.DronesPositions[d.Name] = operator[d.Name]
		e.initial[d.Name] = initial[d.Name]
		e.operator[d.Name] = operator[d.Name]
		e.states[d.Name] = d.State
	}

	logger.Infof("Missão %s (%s) iniciada com %d drones", e.mission.ID, t, len(drones))
	e.persist()
	e.notify(models.TypeMission, e.mission)
	return e
}

// ID retorna o id da missão (vazio se rejeitada)
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mission.ID
}

// Status retorna o status atual
func (e *Engine) Status() models.MissionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mission.Status
}

// Type retorna o tipo de frota da missão
func (e *Engine) Type() models.MissionType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mission.Type
}

// Accepted indica se a missão saiu do estado rejeitado
func (e *Engine) Accepted() bool {
	return e.Status() != models.StatusRejected
}

// Snapshot retorna uma cópia profunda do documento da missão
func (e *Engine) Snapshot() models.Mission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return deep.MustCopy(e.mission)
}

// ObserveState registra o último estado conhecido de um drone participante
func (e *Engine) ObserveState(name string, state models.DroneState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.states[name]; ok {
		e.states[name] = state
	}
}

// OnSample funde uma amostra de telemetria na missão e emite um missionPulse
// com apenas o que mudou.
func (e *Engine) OnSample(name string, position [3]float64, yaw float64, ranges [4]int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mission.Status.Terminal() {
		return ErrMissionClosed
	}
	if _, ok := e.mission.Drones[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDrone, name)
	}

	pos := models.Vec2{X: position[0], Y: position[1]}.Sub(e.initial[name])
	pos, yaw = correct(e.mission.Type, pos, yaw)
	pos = pos.Add(e.operator[name]).Round(4)

	pulse := models.MissionPulse{ID: e.mission.ID}
	if last, ok := e.mission.DronesPositions[name]; !ok || last != pos {
		pulse.DronesPositions = map[string]models.Vec2{name: pos}
	}

	for _, candidate := range ProjectRanges(pos, yaw, ranges, e.params) {
		if e.dedup.Accept(candidate) {
			pulse.Points = append(pulse.Points, models.MissionPoint{DroneName: name, Value: candidate})
		}
	}
	e.mission.Points = append(e.mission.Points, pulse.Points...)
	e.mission.DronesPositions[name] = pos

	if last, ok := e.lastPath[name]; !ok || pos.Dist(last) > e.deps.Settings.PathMinDistance {
		e.lastPath[name] = pos
		e.mission.DronesPaths[name] = append(e.mission.DronesPaths[name], pos)
		pulse.DronesPaths = map[string][]models.Vec2{name: {pos}}
	}

	e.persistLocked()
	e.notify(models.TypeMissionPulse, pulse)
	return nil
}

// CheckCompletion encerra a missão na primeira avaliação em que o período
// de estabilização passou e todos os drones estão pousados ou acidentados.
// Retorna true somente nessa avaliação.
func (e *Engine) CheckCompletion() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mission.Status.Terminal() {
		return false
	}
	if e.deps.Clock.Now().Sub(e.start) < e.deps.Settings.SettlingPeriod {
		return false
	}
	for _, s := range e.states {
		if !s.Landed() {
			return false
		}
	}
	e.finishLocked(models.StatusDone)
	return true
}

// End encerra a missão com sucesso. Sem efeito se já terminal.
func (e *Engine) End() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishLocked(models.StatusDone)
}

// Stop cancela a missão (status failed). Sem efeito se já terminal.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishLocked(models.StatusFailed)
}

func (e *Engine) finishLocked(status models.MissionStatus) {
	if e.mission.Status.Terminal() {
		return
	}

	values := make([]models.Vec2, len(e.mission.Points))
	for i, p := range e.mission.Points {
		values[i] = p.Value
	}
	shapes := AssembleShapes(values, e.deps.Settings.ShapeLinkDistance)
	if shapes == nil {
		shapes = [][]models.Vec2{}
	}

	e.mission.Status = status
	e.mission.Shapes = shapes
	logger.Infof("Missão %s finalizada (%s): %d pontos, %d formas",
		e.mission.ID, status, len(e.mission.Points), len(shapes))

	e.persistLocked()
	e.notify(models.TypeMissionPulse, models.MissionPulse{
		ID:     e.mission.ID,
		Status: status,
		Shapes: shapes,
	})
}

func (e *Engine) persist() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persistLocked()
}

func (e *Engine) persistLocked() {
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.SaveMission(context.Background(), e.mission); err != nil {
		logger.Warnf("Erro ao persistir missão %s: %v", e.mission.ID, err)
	}
}

func (e *Engine) notify(t models.MessageType, data interface{}) {
	if e.deps.Notify == nil {
		return
	}
	msg, err := models.NewMessage(t, data)
	if err != nil {
		logger.Error("Erro ao montar mensagem de missão", err)
		return
	}
	e.deps.Notify(msg)
}
