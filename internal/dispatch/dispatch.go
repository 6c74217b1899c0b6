// Package dispatch encaminha os comandos do painel às frotas e monta o
// estado inicial enviado a cada novo cliente.
package dispatch

import (
	"fleet_go/internal/fleet"
	"fleet_go/internal/models"
	"fleet_go/pkg/logger"
)

// Dispatcher conhece todos os controladores de frota
type Dispatcher struct {
	controllers []fleet.Controller
}

// New cria o dispatcher. Controladores nil são ignorados.
func New(controllers ...fleet.Controller) *Dispatcher {
	d := &Dispatcher{}
	for _, c := range controllers {
		if c != nil {
			d.controllers = append(d.controllers, c)
		}
	}
	return d
}

// HandleCommand entrega o comando às frotas. loadProject só faz sentido
// para a frota física e é entregue apenas a ela.
func (d *Dispatcher) HandleCommand(msg models.Message) {
	targets := d.targets(msg)
	if len(targets) == 0 {
		logger.Warnf("Nenhuma frota para o comando %s", msg.Type)
		return
	}
	for _, c := range targets {
		c.HandleCommand(msg)
	}
}

func (d *Dispatcher) targets(msg models.Message) []fleet.Controller {
	var out []fleet.Controller
	switch {
	case msg.Type == models.TypeLoadProject:
		for _, c := range d.controllers {
			if c.Type() == models.MissionPhysical {
				out = append(out, c)
			}
		}
	case untypedStart(msg):
		// só frotas com drones iniciam; sem nenhuma, uma única frota
		// responde com a rejeição
		for _, c := range d.controllers {
			if len(c.Drones()) > 0 {
				out = append(out, c)
			}
		}
		if len(out) == 0 && len(d.controllers) > 0 {
			out = d.controllers[:1]
		}
	default:
		out = d.controllers
	}
	return out
}

// untypedStart indica um startMission sem frota definida
func untypedStart(msg models.Message) bool {
	if msg.Type != models.TypeStartMission {
		return false
	}
	payload, err := msg.Decode()
	if err != nil {
		return false
	}
	return payload.(*models.StartMissionData).Type == ""
}

// InitialMessages retorna um pulse completo por drone conectado e o
// documento de cada missão em andamento
func (d *Dispatcher) InitialMessages() []models.Message {
	var msgs []models.Message
	for _, c := range d.controllers {
		for _, drone := range c.Drones() {
			msg, err := models.NewMessage(models.TypePulse, models.FullPulse(drone))
			if err != nil {
				logger.Error("Erro ao montar pulse inicial", err)
				continue
			}
			msgs = append(msgs, msg)
		}
	}
	for _, m := range d.ActiveMissions() {
		msg, err := models.NewMessage(models.TypeMission, m)
		if err != nil {
			logger.Error("Erro ao montar missão inicial", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// Drones retorna os drones de cada frota
func (d *Dispatcher) Drones() map[models.MissionType][]models.Drone {
	out := make(map[models.MissionType][]models.Drone, len(d.controllers))
	for _, c := range d.controllers {
		out[c.Type()] = c.Drones()
	}
	return out
}

// ActiveMissions retorna as missões em andamento
func (d *Dispatcher) ActiveMissions() []models.Mission {
	var out []models.Mission
	for _, c := range d.controllers {
		if m, ok := c.ActiveMission(); ok {
			out = append(out, m)
		}
	}
	return out
}
