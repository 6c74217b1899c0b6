// Package registry mantém o último estado conhecido de cada drone de uma frota.
package registry

import (
	"sort"
	"sync"

	"fleet_go/internal/models"
)

// DroneRegistry mapeia a identidade da conexão (id de sessão TCP ou URI de
// rádio) para o último registro do drone. Cada controlador possui o seu.
type DroneRegistry struct {
	mu     sync.RWMutex
	drones map[string]models.Drone
}

// New cria um registro vazio
func New() *DroneRegistry {
	return &DroneRegistry{drones: make(map[string]models.Drone)}
}

// Get retorna o drone associado à chave
func (r *DroneRegistry) Get(key string) (models.Drone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drones[key]
	return d, ok
}

// Set grava o drone, substituindo o registro anterior
func (r *DroneRegistry) Set(key string, d models.Drone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drones[key] = d
}

// Remove apaga o registro e indica se ele existia
func (r *DroneRegistry) Remove(key string) (models.Drone, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drones[key]
	delete(r.drones, key)
	return d, ok
}

// FindByName retorna a chave e o registro do drone com esse nome
func (r *DroneRegistry) FindByName(name string) (string, models.Drone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, d := range r.drones {
		if d.Name == name {
			return k, d, true
		}
	}
	return "", models.Drone{}, false
}

// Drones retorna os registros ordenados por nome
func (r *DroneRegistry) Drones() []models.Drone {
	r.mu.RLock()
	out := make([]models.Drone, 0, len(r.drones))
	for _, d := range r.drones {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Keys retorna as chaves registradas
func (r *DroneRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.drones))
	for k := range r.drones {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear remove todos os registros e retorna os que existiam
func (r *DroneRegistry) Clear() []models.Drone {
	r.mu.Lock()
	old := r.drones
	r.drones = make(map[string]models.Drone)
	r.mu.Unlock()

	out := make([]models.Drone, 0, len(old))
	for _, d := range old {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
