package models

import (
	"fmt"
	"math"
)

// MissionType seleciona as constantes de escala e alcance da frota
type MissionType string

const (
	MissionSimulated MissionType = "simulated"
	MissionPhysical  MissionType = "physical"
)

// Valid indica se o tipo é conhecido
func (t MissionType) Valid() bool {
	return t == MissionSimulated || t == MissionPhysical
}

// MissionStatus é o estado do ciclo de vida de uma missão
type MissionStatus string

const (
	StatusRequested  MissionStatus = "requested"
	StatusRejected   MissionStatus = "rejected"
	StatusInProgress MissionStatus = "inProgress"
	StatusDone       MissionStatus = "done"
	StatusFailed     MissionStatus = "failed"
)

// Terminal indica que a missão não aceita mais amostras
func (s MissionStatus) Terminal() bool {
	return s == StatusRejected || s == StatusDone || s == StatusFailed
}

// Code retorna um código numérico do status, usado na exportação para o CLP
func (s MissionStatus) Code() int16 {
	switch s {
	case StatusRequested:
		return 1
	case StatusInProgress:
		return 2
	case StatusDone:
		return 3
	case StatusFailed:
		return 4
	case StatusRejected:
		return 5
	}
	return 0
}

// Vec2 é um ponto no plano da missão, em metros
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Sub retorna v - o
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Add retorna v + o
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Dist retorna a distância euclidiana entre v e o
func (v Vec2) Dist(o Vec2) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// Round arredonda as coordenadas para n casas decimais
func (v Vec2) Round(n int) Vec2 {
	p := math.Pow10(n)
	return Vec2{X: math.Round(v.X*p) / p, Y: math.Round(v.Y*p) / p}
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", v.X, v.Y)
}

// MissionPoint é um ponto de obstáculo detectado por um drone
type MissionPoint struct {
	DroneName string `json:"droneName" msgpack:"droneName"`
	Value     Vec2   `json:"value" msgpack:"value"`
}

// Mission é o documento completo de uma missão
type Mission struct {
	ID              string            `json:"id" msgpack:"id"`
	Timestamp       int64             `json:"timestamp" msgpack:"timestamp"`
	Type            MissionType       `json:"type" msgpack:"type"`
	Status          MissionStatus     `json:"status" msgpack:"status"`
	Drones          map[string]string `json:"drones" msgpack:"drones"`
	DronesPositions map[string]Vec2   `json:"dronesPositions" msgpack:"dronesPositions"`
	DronesPaths     map[string][]Vec2 `json:"dronesPaths" msgpack:"dronesPaths"`
	Shapes          [][]Vec2          `json:"shapes" msgpack:"shapes"`
	Points          []MissionPoint    `json:"points" msgpack:"points"`
}

// MissionPulse carrega apenas os campos alterados de uma missão
type MissionPulse struct {
	ID              string            `json:"id,omitempty"`
	Status          MissionStatus     `json:"status,omitempty"`
	DronesPositions map[string]Vec2   `json:"dronesPositions,omitempty"`
	DronesPaths     map[string][]Vec2 `json:"dronesPaths,omitempty"`
	Points          []MissionPoint    `json:"points,omitempty"`
	Shapes          [][]Vec2          `json:"shapes,omitempty"`
}
