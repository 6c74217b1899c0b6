package models

import (
	"encoding/json"
	"fmt"
)

// DroneState representa o estado de voo reportado por um drone.
// A ordem das constantes é a mesma do byte de estado do firmware.
type DroneState uint8

const (
	StateOnTheGround DroneState = iota
	StateTakingOff
	StateLanding
	StateCrashed
	StateExploring
	StateStandBy
	StateReturningToBase
)

var droneStateNames = [...]string{
	"onTheGround",
	"takingOff",
	"landing",
	"crashed",
	"exploring",
	"standBy",
	"returningToBase",
}

// String retorna o nome do estado usado no protocolo
func (s DroneState) String() string {
	if int(s) < len(droneStateNames) {
		return droneStateNames[s]
	}
	return fmt.Sprintf("DroneState(%d)", uint8(s))
}

// Valid indica se o estado pertence ao conjunto conhecido
func (s DroneState) Valid() bool {
	return int(s) < len(droneStateNames)
}

// Landed indica um estado em que o drone não participa mais da exploração
func (s DroneState) Landed() bool {
	return s == StateOnTheGround || s == StateCrashed
}

// ParseDroneState converte o nome do protocolo em DroneState
func ParseDroneState(name string) (DroneState, error) {
	for i, n := range droneStateNames {
		if n == name {
			return DroneState(i), nil
		}
	}
	return 0, fmt.Errorf("estado de drone desconhecido: %q", name)
}

// MarshalJSON serializa o estado pelo nome
func (s DroneState) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("estado de drone inválido: %d", uint8(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON aceita o nome do estado
func (s *DroneState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("estado de drone: %w", err)
	}
	parsed, err := ParseDroneState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Drone é o último estado conhecido de um drone da frota
type Drone struct {
	Name      string     `json:"name"`
	Timestamp int64      `json:"timestamp"`
	Speed     float64    `json:"speed"`
	Battery   float64    `json:"battery"`
	Position  [3]float64 `json:"position"`
	Yaw       float64    `json:"yaw"`
	Ranges    [4]int     `json:"ranges"`
	State     DroneState `json:"state"`
	LedOn     bool       `json:"ledOn"`
	Real      bool       `json:"real"`
}

// MergeJSON aplica os campos presentes em data sobre uma cópia de d.
// Campos ausentes no JSON mantêm o valor anterior.
func (d Drone) MergeJSON(data []byte) (Drone, error) {
	merged := d
	if err := json.Unmarshal(data, &merged); err != nil {
		return d, fmt.Errorf("erro ao decodificar pulse: %w", err)
	}
	return merged, nil
}
