package api

import (
	"encoding/json"
	"net/http"
	"time"

	"fleet_go/pkg/logger"
)

// Middleware envolve um handler HTTP
type Middleware func(http.Handler) http.Handler

// Chain aplica os middlewares na ordem dada: o primeiro é o mais externo
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// LoggingMiddleware registra uma linha por requisição com a rota atendida.
// Respostas de sucesso ficam em debug.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = r.Method + " " + r.URL.Path
		}
		elapsed := time.Since(start)
		if rw.status >= http.StatusBadRequest {
			logger.Warnf("API %s -> %d (%d bytes, %v) de %s", route, rw.status, rw.bytes, elapsed, r.RemoteAddr)
			return
		}
		logger.Debugf("API %s -> %d (%d bytes, %v)", route, rw.status, rw.bytes, elapsed)
	})
}

// RecoveryMiddleware transforma um panic em erro 500 no formato da API
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorf("Panic em %s %s: %v", r.Method, r.URL.Path, err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "erro interno"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CorsMiddleware libera a leitura da API para o painel em outra origem
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
