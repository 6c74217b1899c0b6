package models

import (
	"encoding/json"
	"fmt"
)

// MessageType é o vocabulário fechado do envelope {type, data}
type MessageType string

const (
	TypePulse          MessageType = "pulse"
	TypeDisconnect     MessageType = "disconnect"
	TypeStartMission   MessageType = "startMission"
	TypeStopMission    MessageType = "stopMission"
	TypeReturnToBase   MessageType = "returnToBase"
	TypeTakeOff        MessageType = "takeOff"
	TypeLand           MessageType = "land"
	TypeLighten        MessageType = "lighten"
	TypeDarken         MessageType = "darken"
	TypeMission        MessageType = "mission"
	TypeMissionPulse   MessageType = "missionPulse"
	TypeLoadProject    MessageType = "loadProject"
	TypeLoadProjectLog MessageType = "loadProjectLog"
)

// AllDrones é o nome-alvo que endereça todos os drones de uma frota
const AllDrones = "*"

// Message é o envelope trocado com drones e com o painel
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage serializa data no envelope
func NewMessage(t MessageType, data interface{}) (Message, error) {
	if data == nil {
		return Message{Type: t}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("erro ao serializar %s: %w", t, err)
	}
	return Message{Type: t, Data: raw}, nil
}

// DisconnectData anuncia que um drone saiu da frota
type DisconnectData struct {
	Name string `json:"name"`
}

// CommandData endereça um comando a um drone ou a todos ("*")
type CommandData struct {
	Name string `json:"name,omitempty"`
}

// StartMissionData inicia uma missão. Type vazio inicia em todas as frotas.
type StartMissionData struct {
	Type            MissionType     `json:"type,omitempty"`
	DronesPositions map[string]Vec2 `json:"dronesPositions,omitempty"`
}

// LoadProjectData pede a compilação e gravação de um firmware
type LoadProjectData struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

// LoadProjectLogData é uma linha de saída do build/flash
type LoadProjectLogData struct {
	Log string `json:"log"`
}

// LoadProjectResult encerra um carregamento de firmware
type LoadProjectResult struct {
	Success bool `json:"success"`
}

// Decode interpreta Data de acordo com Type. Tipos sem payload conhecido
// (comandos simples e tipos futuros) retornam CommandData.
func (m Message) Decode() (interface{}, error) {
	var v interface{}
	switch m.Type {
	case TypePulse:
		v = &Drone{}
	case TypeDisconnect:
		v = &DisconnectData{}
	case TypeStartMission:
		v = &StartMissionData{}
	case TypeMission:
		v = &Mission{}
	case TypeMissionPulse:
		v = &MissionPulse{}
	case TypeLoadProject:
		v = &LoadProjectData{}
	case TypeLoadProjectLog:
		v = &LoadProjectLogData{}
	default:
		v = &CommandData{}
	}
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return nil, fmt.Errorf("payload inválido para %s: %w", m.Type, err)
	}
	return v, nil
}

// Target retorna o nome do drone endereçado pela mensagem, ou AllDrones
func (m Message) Target() string {
	if len(m.Data) == 0 {
		return AllDrones
	}
	var c CommandData
	if err := json.Unmarshal(m.Data, &c); err != nil || c.Name == "" {
		return AllDrones
	}
	return c.Name
}
