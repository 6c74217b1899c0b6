package models

import "github.com/iancoleman/orderedmap"

// DiffDrones retorna os atributos de newDrone que diferem de oldDrone.
// name e timestamp estão sempre presentes e vêm primeiro, mesmo sem mudança.
func DiffDrones(oldDrone, newDrone Drone) *orderedmap.OrderedMap {
	diff := orderedmap.New()
	diff.Set("name", newDrone.Name)
	diff.Set("timestamp", newDrone.Timestamp)

	if oldDrone.Speed != newDrone.Speed {
		diff.Set("speed", newDrone.Speed)
	}
	if oldDrone.Battery != newDrone.Battery {
		diff.Set("battery", newDrone.Battery)
	}
	if oldDrone.Position != newDrone.Position {
		diff.Set("position", newDrone.Position)
	}
	if oldDrone.Yaw != newDrone.Yaw {
		diff.Set("yaw", newDrone.Yaw)
	}
	if oldDrone.Ranges != newDrone.Ranges {
		diff.Set("ranges", newDrone.Ranges)
	}
	if oldDrone.State != newDrone.State {
		diff.Set("state", newDrone.State)
	}
	if oldDrone.LedOn != newDrone.LedOn {
		diff.Set("ledOn", newDrone.LedOn)
	}
	if oldDrone.Real != newDrone.Real {
		diff.Set("real", newDrone.Real)
	}
	return diff
}

// FullPulse retorna todos os atributos do drone, na mesma ordem de DiffDrones.
// Usado quando não existe registro anterior e para o estado inicial do painel.
func FullPulse(d Drone) *orderedmap.OrderedMap {
	pulse := orderedmap.New()
	pulse.Set("name", d.Name)
	pulse.Set("timestamp", d.Timestamp)
	pulse.Set("speed", d.Speed)
	pulse.Set("battery", d.Battery)
	pulse.Set("position", d.Position)
	pulse.Set("yaw", d.Yaw)
	pulse.Set("ranges", d.Ranges)
	pulse.Set("state", d.State)
	pulse.Set("ledOn", d.LedOn)
	pulse.Set("real", d.Real)
	return pulse
}
