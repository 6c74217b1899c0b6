// Package fleet contém os controladores de frota: aceitam ou descobrem as
// sessões de transporte, mantêm o registro de drones, alimentam a missão
// ativa e traduzem comandos do painel em mensagens para os drones.
package fleet

import (
	"errors"
	"sync"
	"sync/atomic"

	"fleet_go/internal/mission"
	"fleet_go/internal/models"
	"fleet_go/internal/registry"
	"fleet_go/pkg/clock"
	"fleet_go/pkg/logger"
)

// Relay entrega mensagens ao painel
type Relay interface {
	Broadcast(msg models.Message)
}

// RelayFunc adapta uma função a Relay
type RelayFunc func(models.Message)

// Broadcast chama f(msg)
func (f RelayFunc) Broadcast(msg models.Message) { f(msg) }

// Controller é a visão comum das duas frotas usada pelo painel e pela API
type Controller interface {
	Type() models.MissionType
	HandleCommand(msg models.Message)
	Drones() []models.Drone
	ActiveMission() (models.Mission, bool)
}

// Deps são os colaboradores compartilhados pelos controladores
type Deps struct {
	Relay    Relay
	Store    mission.Store
	Clock    clock.Clock
	Settings mission.Settings
}

func (d Deps) withDefaults() Deps {
	if d.Relay == nil {
		d.Relay = RelayFunc(func(models.Message) {})
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	return d
}

// base guarda o estado comum. mu serializa cada sequência
// frame → merge → diff → notificação e toda troca de missão.
type base struct {
	kind     models.MissionType
	deps     Deps
	registry *registry.DroneRegistry
	running  atomic.Bool

	mu      sync.Mutex
	mission *mission.Engine
}

func newBase(kind models.MissionType, deps Deps) *base {
	return &base{
		kind:     kind,
		deps:     deps.withDefaults(),
		registry: registry.New(),
	}
}

// Type retorna o tipo de frota
func (b *base) Type() models.MissionType { return b.kind }

// Drones retorna os drones registrados, ordenados por nome
func (b *base) Drones() []models.Drone { return b.registry.Drones() }

// Running indica se o controlador está ativo
func (b *base) Running() bool { return b.running.Load() }

// ActiveMission retorna uma cópia da missão em andamento
func (b *base) ActiveMission() (models.Mission, bool) {
	b.mu.Lock()
	e := b.mission
	b.mu.Unlock()
	if e == nil {
		return models.Mission{}, false
	}
	return e.Snapshot(), true
}

func (b *base) broadcast(t models.MessageType, data interface{}) {
	msg, err := models.NewMessage(t, data)
	if err != nil {
		logger.Error("Erro ao montar mensagem para o painel", err)
		return
	}
	b.deps.Relay.Broadcast(msg)
}

func (b *base) now() int64 { return b.deps.Clock.Now().UnixMilli() }

// publishPulse envia ao painel a diferença entre o registro anterior e o novo.
// Sem registro anterior, todos os atributos são enviados.
func (b *base) publishPulse(prev models.Drone, hadPrev bool, cur models.Drone) {
	if hadPrev {
		b.broadcast(models.TypePulse, models.DiffDrones(prev, cur))
		return
	}
	b.broadcast(models.TypePulse, models.FullPulse(cur))
}

// feedLocked repassa o estado do drone à missão ativa; sample indica que o
// frame trouxe posição e leituras de distância.
func (b *base) feedLocked(d models.Drone, sample bool) {
	if b.mission == nil {
		return
	}
	b.mission.ObserveState(d.Name, d.State)
	if sample {
		err := b.mission.OnSample(d.Name, d.Position, d.Yaw, d.Ranges)
		if err != nil && !errors.Is(err, mission.ErrUnknownDrone) {
			logger.Debugf("Amostra de %s ignorada: %v", d.Name, err)
		}
	}
	if b.mission.CheckCompletion() || b.mission.Status().Terminal() {
		logger.Infof("Missão %s da frota %s concluída", b.mission.ID(), b.kind)
		b.mission = nil
	}
}

// dropDronesLocked anuncia a saída dos drones e interrompe a missão ativa
func (b *base) dropDronesLocked(drones []models.Drone) {
	for _, d := range drones {
		b.broadcast(models.TypeDisconnect, models.DisconnectData{Name: d.Name})
	}
	if b.mission != nil && len(drones) > 0 {
		logger.Warnf("Drone desconectado durante a missão %s; missão interrompida", b.mission.ID())
		b.mission.Stop()
		b.mission = nil
	}
}

// startMissionLocked cria a missão com os drones atuais. A posição atual de
// cada drone vira o referencial da missão.
func (b *base) startMissionLocked(data models.StartMissionData) bool {
	if b.mission != nil {
		logger.Warnf("Nova missão solicitada; encerrando missão %s", b.mission.ID())
		b.mission.Stop()
		b.mission = nil
	}

	drones := b.registry.Drones()
	initial := make(map[string]models.Vec2, len(drones))
	for _, d := range drones {
		initial[d.Name] = models.Vec2{X: d.Position[0], Y: d.Position[1]}
	}

	e := mission.NewEngine(drones, b.kind, initial, data.DronesPositions, mission.Deps{
		Store:    b.deps.Store,
		Notify:   b.deps.Relay.Broadcast,
		Clock:    b.deps.Clock,
		Settings: b.deps.Settings,
	})
	if !e.Accepted() {
		return false
	}
	b.mission = e
	return true
}

// endMissionLocked encerra a missão ativa com sucesso
func (b *base) endMissionLocked() {
	if b.mission == nil {
		return
	}
	b.mission.End()
	b.mission = nil
}

// abortMission interrompe a missão ativa no encerramento do controlador
func (b *base) abortMission() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mission != nil {
		logger.Warnf("Controlador %s encerrado com a missão %s em andamento", b.kind, b.mission.ID())
		b.mission.Stop()
		b.mission = nil
	}
}

// wantsStart indica se um startMission se destina a esta frota
func (b *base) wantsStart(data models.StartMissionData) bool {
	return data.Type == "" || data.Type == b.kind
}

// route decide o que fazer com um comando do painel. send entrega a mensagem
// aos drones endereçados.
func (b *base) route(msg models.Message, send func(models.Message)) {
	switch msg.Type {
	case models.TypeStartMission:
		payload, err := msg.Decode()
		if err != nil {
			logger.Warnf("startMission inválido: %v", err)
			return
		}
		data := *payload.(*models.StartMissionData)
		if !b.wantsStart(data) {
			return
		}
		b.mu.Lock()
		accepted := b.startMissionLocked(data)
		b.mu.Unlock()
		if accepted {
			send(msg)
		}

	case models.TypeStopMission:
		b.mu.Lock()
		b.endMissionLocked()
		b.mu.Unlock()
		send(msg)

	default:
		send(msg)
	}
}
