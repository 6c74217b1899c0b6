package server

import (
	"encoding/json"
	"net/http"
	"time"

	"fleet_go/internal/api"
	"fleet_go/internal/models"
	"fleet_go/internal/websocket"
	"fleet_go/pkg/utils"
)

// setupRoutes configura todas as rotas do servidor. O WebSocket fica fora
// dos middlewares, que não repassam o Hijack da conexão.
func (s *Server) setupRoutes() {
	wsHandler := websocket.NewHandler(s.hub)
	apiRouter := api.NewRouter(s.store, s.dispatcher, "/api")
	apiRouter.Setup()

	common := api.Chain(api.RecoveryMiddleware, api.CorsMiddleware)

	s.router.Handle("/health", common(http.HandlerFunc(s.healthHandler)))
	s.router.Handle("/info", common(http.HandlerFunc(s.infoHandler)))

	s.router.Handle("/ws", wsHandler)
	s.router.HandleFunc("/ws/health", wsHandler.HealthHandler())

	s.router.Handle("/api/", apiRouter.Handler())
}

// healthHandler responde com o status de saúde do servidor
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	simulatedStatus := "ok"
	if !s.simulated.Running() {
		simulatedStatus = "offline"
	}

	physicalStatus := "disabled"
	if s.physical != nil {
		physicalStatus = "ok"
		if !s.physical.Running() {
			physicalStatus = "offline"
		} else if s.physical.Loading() {
			physicalStatus = "loading"
		}
	}

	redisStatus := "disabled"
	if s.config.Redis.Enabled {
		redisStatus = "ok"
		if !s.store.IsConnected() {
			redisStatus = "offline"
		}
	}

	plcStatus := "disabled"
	if s.config.PLC.Enabled {
		plcStatus = "ok"
		if !s.plcService.IsRunning() || !s.plcService.Online() {
			plcStatus = "offline"
		}
	}

	discoveryStatus := "disabled"
	if s.config.Discovery.Enabled {
		discoveryStatus = "ok"
		if !s.discoveryService.IsRunning() {
			discoveryStatus = "offline"
		}
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"services": map[string]string{
			"simulated": simulatedStatus,
			"physical":  physicalStatus,
			"redis":     redisStatus,
			"plc":       plcStatus,
			"websocket": "ok",
			"discovery": discoveryStatus,
		},
	}

	if simulatedStatus == "offline" || redisStatus == "offline" {
		response["status"] = "degraded"
	}

	json.NewEncoder(w).Encode(response)
}

// infoHandler retorna informações básicas sobre o servidor
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	info := s.GetServerInfo()
	drones := s.dispatcher.Drones()

	response := map[string]interface{}{
		"name":           "Fleet Mission Server",
		"version":        info.Version,
		"ip":             info.IP,
		"port":           info.Port,
		"simPort":        info.SimPort,
		"websocket":      info.WebSocketURL,
		"api":            info.APIURL,
		"startTime":      utils.FormatDateTime(info.StartTime),
		"uptime":         utils.FormatDuration(time.Since(info.StartTime)),
		"connections":    s.hub.ClientCount(),
		"simulated":      len(drones[models.MissionSimulated]),
		"physical":       len(drones[models.MissionPhysical]),
		"activeMissions": len(s.dispatcher.ActiveMissions()),
	}

	json.NewEncoder(w).Encode(response)
}
