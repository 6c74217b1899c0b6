package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"fleet_go/internal/models"
	"fleet_go/internal/redis"
	"fleet_go/pkg/logger"
)

// MissionReader lê o histórico de missões
type MissionReader interface {
	GetMission(ctx context.Context, id string) (models.Mission, error)
	ListMissions(ctx context.Context, limit int64) ([]models.Mission, error)
}

// FleetReader lê o estado atual das frotas
type FleetReader interface {
	Drones() map[models.MissionType][]models.Drone
	ActiveMissions() []models.Mission
}

// Handler contém os handlers HTTP para a API
type Handler struct {
	missions MissionReader
	fleets   FleetReader
}

// NewHandler cria um novo handler de API
func NewHandler(missions MissionReader, fleets FleetReader) *Handler {
	return &Handler{
		missions: missions,
		fleets:   fleets,
	}
}

// ListMissions retorna as missões, da mais recente para a mais antiga
func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			h.respondWithError(w, http.StatusBadRequest, "Parâmetro limit inválido")
			return
		}
		limit = n
	}

	missions, err := h.missions.ListMissions(r.Context(), limit)
	if err != nil {
		logger.Error("Erro ao listar missões", err)
		h.respondWithError(w, http.StatusServiceUnavailable, "Histórico de missões indisponível")
		return
	}
	if missions == nil {
		missions = []models.Mission{}
	}

	h.respondWithJSON(w, http.StatusOK, missions)
}

// GetMission retorna uma missão pelo id
func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.respondWithError(w, http.StatusBadRequest, "Id da missão não fornecido")
		return
	}

	mission, err := h.missions.GetMission(r.Context(), id)
	if errors.Is(err, redis.ErrMissionNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Missão não encontrada")
		return
	}
	if err != nil {
		logger.Error("Erro ao obter missão", err)
		h.respondWithError(w, http.StatusServiceUnavailable, "Histórico de missões indisponível")
		return
	}

	h.respondWithJSON(w, http.StatusOK, mission)
}

// GetActiveMissions retorna as missões em andamento
func (h *Handler) GetActiveMissions(w http.ResponseWriter, r *http.Request) {
	missions := h.fleets.ActiveMissions()
	if missions == nil {
		missions = []models.Mission{}
	}
	h.respondWithJSON(w, http.StatusOK, missions)
}

// GetDrones retorna os drones conectados, agrupados por frota
func (h *Handler) GetDrones(w http.ResponseWriter, r *http.Request) {
	drones := h.fleets.Drones()
	for _, t := range []models.MissionType{models.MissionSimulated, models.MissionPhysical} {
		if drones[t] == nil {
			drones[t] = []models.Drone{}
		}
	}
	h.respondWithJSON(w, http.StatusOK, drones)
}

// respondWithError responde com erro em formato JSON
func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON responde com JSON
func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
		fmt.Fprintf(w, `{"error":"Erro interno ao processar resposta"}`)
	}
}
