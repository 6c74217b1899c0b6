package redis

import (
	"context"
	"sync"

	"github.com/brunoga/deep"

	"fleet_go/internal/models"
	"fleet_go/pkg/logger"
)

// saver é o destino final das gravações
type saver interface {
	SaveMission(ctx context.Context, m models.Mission) error
}

// AsyncWriter tira a persistência do caminho da telemetria. Guarda apenas o
// último documento de cada missão até a próxima descarga.
type AsyncWriter struct {
	dst saver

	mu      sync.Mutex
	pending map[string]models.Mission
	order   []string
	wake    chan struct{}
}

// NewAsyncWriter cria o escritor sobre dst
func NewAsyncWriter(dst saver) *AsyncWriter {
	return &AsyncWriter{
		dst:     dst,
		pending: make(map[string]models.Mission),
		wake:    make(chan struct{}, 1),
	}
}

// SaveMission enfileira o documento e retorna sem bloquear
func (w *AsyncWriter) SaveMission(_ context.Context, m models.Mission) error {
	m = deep.MustCopy(m)

	w.mu.Lock()
	if _, queued := w.pending[m.ID]; !queued {
		w.order = append(w.order, m.ID)
	}
	w.pending[m.ID] = m
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending retorna quantas missões aguardam gravação
func (w *AsyncWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush grava tudo o que está pendente, na ordem de chegada
func (w *AsyncWriter) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := make([]models.Mission, 0, len(w.order))
	for _, id := range w.order {
		batch = append(batch, w.pending[id])
	}
	w.pending = make(map[string]models.Mission)
	w.order = nil
	w.mu.Unlock()

	for _, m := range batch {
		if err := w.dst.SaveMission(ctx, m); err != nil {
			logger.Warnf("Erro ao persistir missão %s: %v", m.ID, err)
		}
	}
}

// Run descarrega a fila sempre que há novidade, até ctx ser cancelado.
// Uma última descarga é feita na saída.
func (w *AsyncWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.Flush(context.Background())
			return nil
		case <-w.wake:
			w.Flush(ctx)
		}
	}
}
