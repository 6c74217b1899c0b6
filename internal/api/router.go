package api

import (
	"net/http"
	"strings"

	"fleet_go/pkg/logger"
)

// Router gerencia as rotas da API
type Router struct {
	handler     *Handler
	mux         *http.ServeMux
	basePath    string
	middlewares []Middleware
}

// NewRouter cria um novo router para a API
func NewRouter(missions MissionReader, fleets FleetReader, basePath string) *Router {
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")

	return &Router{
		handler:  NewHandler(missions, fleets),
		mux:      http.NewServeMux(),
		basePath: basePath,
		middlewares: []Middleware{
			LoggingMiddleware,
			RecoveryMiddleware,
			CorsMiddleware,
		},
	}
}

// Setup configura todas as rotas
func (r *Router) Setup() {
	r.mux.HandleFunc("GET "+r.path("/missions"), r.handler.ListMissions)
	r.mux.HandleFunc("GET "+r.path("/missions/active"), r.handler.GetActiveMissions)
	r.mux.HandleFunc("GET "+r.path("/missions/{id}"), r.handler.GetMission)
	r.mux.HandleFunc("GET "+r.path("/drones"), r.handler.GetDrones)

	logger.Infof("API configurada com base path: %s", r.basePath)
}

// Handler retorna o handler HTTP final com todos os middlewares aplicados
func (r *Router) Handler() http.Handler {
	return Chain(r.middlewares...)(r.mux)
}

func (r *Router) path(route string) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return r.basePath + route
}
