package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"fleet_go/internal/models"
)

var (
	// ErrUnknownCommand indica um tipo de mensagem sem opcode de rádio
	ErrUnknownCommand = errors.New("comando sem opcode de rádio")
	// ErrUnknownDiscriminator indica um frame de telemetria de tipo desconhecido
	ErrUnknownDiscriminator = errors.New("discriminador de frame desconhecido")
	// ErrShortFrame indica um frame menor que o layout do seu tipo
	ErrShortFrame = errors.New("frame curto")
)

// commandTable define os opcodes: o opcode é o índice do comando
var commandTable = [...]models.MessageType{
	models.TypeStartMission,
	models.TypeStopMission,
	models.TypeReturnToBase,
	models.TypeTakeOff,
	models.TypeLand,
	models.TypeLighten,
	models.TypeDarken,
}

// EncodeCommand retorna o frame de um byte do comando
func EncodeCommand(t models.MessageType) ([]byte, error) {
	for i, c := range commandTable {
		if c == t {
			return []byte{byte(i)}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, t)
}

// FrameKind é o discriminador do frame de telemetria
type FrameKind uint8

const (
	FrameBattery FrameKind = iota
	FrameSpeed
	FramePositionAndSensors
	FrameOthers
)

func (k FrameKind) String() string {
	switch k {
	case FrameBattery:
		return "BATTERY"
	case FrameSpeed:
		return "SPEED"
	case FramePositionAndSensors:
		return "POSITION_AND_SENSORS"
	case FrameOthers:
		return "OTHERS"
	}
	return fmt.Sprintf("FrameKind(%d)", uint8(k))
}

type positionFrame struct {
	X, Y, Z, Yaw float32
	Ranges       [4]uint16
}

type othersFrame struct {
	State uint8
	LedOn uint8
}

// ApplyFrame decodifica um frame little-endian e atualiza em d apenas os
// campos do seu tipo. Em erro, d é retornado sem alteração.
func ApplyFrame(d models.Drone, frame []byte) (models.Drone, FrameKind, error) {
	if len(frame) == 0 {
		return d, 0, ErrShortFrame
	}
	kind := FrameKind(frame[0])
	r := bytes.NewReader(frame[1:])

	switch kind {
	case FrameBattery, FrameSpeed:
		var v float32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, kind, fmt.Errorf("%w: %s", ErrShortFrame, kind)
		}
		if kind == FrameBattery {
			d.Battery = float64(v)
		} else {
			d.Speed = float64(v)
		}

	case FramePositionAndSensors:
		var p positionFrame
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return d, kind, fmt.Errorf("%w: %s", ErrShortFrame, kind)
		}
		d.Position = [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
		d.Yaw = float64(p.Yaw)
		for i, v := range p.Ranges {
			d.Ranges[i] = int(v)
		}

	case FrameOthers:
		var o othersFrame
		if err := binary.Read(r, binary.LittleEndian, &o); err != nil {
			return d, kind, fmt.Errorf("%w: %s", ErrShortFrame, kind)
		}
		state := models.DroneState(o.State)
		if !state.Valid() {
			return d, kind, fmt.Errorf("estado inválido no frame: %d", o.State)
		}
		d.State = state
		d.LedOn = o.LedOn != 0

	default:
		return d, kind, fmt.Errorf("%w: %d", ErrUnknownDiscriminator, frame[0])
	}
	return d, kind, nil
}
