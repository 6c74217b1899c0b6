package plc

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fleet_go/internal/config"
	"fleet_go/internal/models"
	"fleet_go/pkg/logger"
	"fleet_go/pkg/utils"
)

// Layout do bloco de dados exportado
const (
	offsetDroneCount    = 0
	offsetMissionStatus = 2
	offsetBatteries     = 4
)

// StatusSource fornece o estado das frotas
type StatusSource interface {
	Drones() map[models.MissionType][]models.Drone
	ActiveMissions() []models.Mission
}

// PLCService escreve periodicamente o estado das frotas no CLP
type PLCService struct {
	link    statusLink
	config  config.PLCConfig
	online  atomic.Bool
	source  StatusSource
	ctx     context.Context
	cancel  context.CancelFunc
	mutex   sync.RWMutex
	running bool
	done    chan struct{}
}

// NewPLCService cria um novo serviço de PLC
func NewPLCService(cfg config.PLCConfig, source StatusSource) *PLCService {
	return newService(cfg, source, newS7Link(cfg))
}

func newService(cfg config.PLCConfig, source StatusSource, link statusLink) *PLCService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PLCService{
		link:   link,
		config: cfg,
		source: source,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start inicia a exportação. O CLP é contactado no primeiro ciclo e a cada
// ciclo seguinte enquanto estiver inacessível.
func (s *PLCService) Start() error {
	if !s.config.Enabled {
		logger.Info("Serviço PLC desabilitado por configuração")
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}
	go s.runUpdateLoop()

	s.running = true
	logger.Info("Serviço PLC iniciado")
	return nil
}

// Stop para o serviço
func (s *PLCService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.done
	s.link.Close()
	s.online.Store(false)
	s.running = false
	logger.Info("Serviço PLC parado")
}

// Online indica se a última exportação chegou ao CLP
func (s *PLCService) Online() bool {
	return s.online.Load()
}

// IsRunning verifica se o serviço está em execução
func (s *PLCService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

func (s *PLCService) runUpdateLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.UpdateRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.export()
		}
	}
}

// export escreve o bloco de status completo em uma única operação. Só as
// transições entre acessível e inacessível são registradas.
func (s *PLCService) export() {
	block := encodeStatus(s.source.Drones(), s.source.ActiveMissions(), s.config.BatterySlots)
	err := s.link.WriteStatus(block)
	switch {
	case err != nil && s.online.Swap(false):
		logger.Warnf("Exportação para o CLP interrompida: %v", err)
	case err != nil:
		logger.Debugf("CLP inacessível: %v", err)
	case !s.online.Swap(true):
		logger.Info("Exportação para o CLP ativa")
	}
}

// encodeStatus monta a imagem do bloco: INT quantidade de drones, INT código
// do status da missão mais recente em andamento, e um REAL de bateria por
// posição. Os drones são ordenados por frota e nome; posições sem drone ficam zeradas.
func encodeStatus(drones map[models.MissionType][]models.Drone, missions []models.Mission, slots int) []byte {
	var all []models.Drone
	for _, list := range drones {
		all = append(all, list...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Real != all[j].Real {
			return all[i].Real
		}
		return all[i].Name < all[j].Name
	})

	var status models.MissionStatus
	var latest int64 = -1
	for _, m := range missions {
		if m.Timestamp > latest {
			latest = m.Timestamp
			status = m.Status
		}
	}

	block := make([]byte, offsetBatteries+utils.S7RealSize*slots)
	utils.PutS7Int(block[offsetDroneCount:], int16(len(all)))
	utils.PutS7Int(block[offsetMissionStatus:], status.Code())
	for i := 0; i < slots && i < len(all); i++ {
		utils.PutS7Real(block[offsetBatteries+utils.S7RealSize*i:], float32(all[i].Battery))
	}
	return block
}
