// Package server monta todos os serviços a partir da configuração e controla
// o ciclo de vida do processo.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"fleet_go/internal/config"
	"fleet_go/internal/discovery"
	"fleet_go/internal/dispatch"
	"fleet_go/internal/firmware"
	"fleet_go/internal/fleet"
	"fleet_go/internal/mission"
	"fleet_go/internal/plc"
	"fleet_go/internal/radio"
	"fleet_go/internal/redis"
	"fleet_go/internal/websocket"
	"fleet_go/pkg/logger"
)

// Server encapsula o servidor HTTP e todos os componentes
type Server struct {
	config           *config.Config
	httpServer       *http.Server
	router           *http.ServeMux
	hub              *websocket.Hub
	store            *redis.MissionStore
	writer           *redis.AsyncWriter
	simulated        *fleet.SimulatedController
	physical         *fleet.PhysicalController
	dispatcher       *dispatch.Dispatcher
	plcService       *plc.PLCService
	discoveryService *discovery.Service
	serverInfo       ServerInfo
}

// ServerInfo contém informações sobre o servidor
type ServerInfo struct {
	IP           string
	Port         int
	SimPort      int
	StartTime    time.Time
	Version      string
	WebSocketURL string
	APIURL       string
}

// NewServer cria o servidor; nada é iniciado até Run
func NewServer(cfg *config.Config) (*Server, error) {
	server := &Server{
		config: cfg,
		router: http.NewServeMux(),
		serverInfo: ServerInfo{
			StartTime: time.Now(),
			Version:   "1.0.0",
			Port:      cfg.Server.Port,
			SimPort:   cfg.Simulated.Port,
		},
	}

	ip := localIP()
	server.serverInfo.IP = ip
	server.serverInfo.WebSocketURL = fmt.Sprintf("ws://%s:%d/ws", ip, cfg.Server.Port)
	server.serverInfo.APIURL = fmt.Sprintf("http://%s:%d/api", ip, cfg.Server.Port)

	server.initComponents()
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// missionSettings converte a seção de missão da configuração
func missionSettings(cfg config.MissionConfig) mission.Settings {
	return mission.Settings{
		Simulated:         mission.TypeParams{Scale: cfg.Simulated.Scale, MaxRange: cfg.Simulated.MaxRange},
		Physical:          mission.TypeParams{Scale: cfg.Physical.Scale, MaxRange: cfg.Physical.MaxRange},
		DedupSeparation:   cfg.DedupSeparation,
		PathMinDistance:   cfg.PathMinDistance,
		ShapeLinkDistance: cfg.ShapeLinkDistance,
		SettlingPeriod:    cfg.SettlingPeriod,
	}
}

func (s *Server) initComponents() {
	s.hub = websocket.NewHub()

	s.store = redis.NewMissionStore(s.config.Redis)
	s.writer = redis.NewAsyncWriter(s.store)

	deps := fleet.Deps{
		Relay:    s.hub,
		Store:    s.writer,
		Settings: missionSettings(s.config.Mission),
	}

	s.simulated = fleet.NewSimulatedController(fleet.SimulatedConfig{
		Host:      s.config.Simulated.Host,
		Port:      s.config.Simulated.Port,
		MaxDrones: s.config.Simulated.MaxDrones,
	}, deps)
	controllers := []fleet.Controller{s.simulated}

	if s.config.Radio.Enabled {
		rc := s.config.Radio
		driver := radio.NewUDPDriver(rc.Host, rc.ControlPort, rc.BasePort, rc.Count, rc.PingTimeout)
		fc := s.config.Firmware
		loader := firmware.NewCommandLoader(firmware.Config{
			BuildCommand: fc.BuildCommand,
			FlashCommand: fc.FlashCommand,
			SandboxPath:  fc.SandboxPath,
			BinaryPath:   fc.BinaryPath,
			WorkDir:      fc.WorkDir,
			Timeout:      fc.Timeout,
		})
		s.physical = fleet.NewPhysicalController(fleet.PhysicalConfig{
			MaxDrones:    rc.MaxDrones,
			ScanInterval: rc.ScanInterval,
		}, driver, loader, deps)
		controllers = append(controllers, s.physical)
	} else {
		logger.Info("Frota física desabilitada por configuração")
	}

	s.dispatcher = dispatch.New(controllers...)
	s.hub.SetSource(s.dispatcher)

	s.plcService = plc.NewPLCService(s.config.PLC, s.dispatcher)
	s.discoveryService = discovery.NewService(s.config.Discovery, s.config.Server.Port, s.config.Simulated.Port)
}

// Run inicia todos os serviços e bloqueia até ctx ser cancelado ou um
// serviço essencial falhar
func (s *Server) Run(ctx context.Context) error {
	if s.config.Redis.Enabled {
		if err := s.store.Connect(ctx); err != nil {
			logger.Warnf("Aviso: %v. O histórico de missões ficará apenas em memória.", err)
		}
	}

	if _, err := s.simulated.Launch(); err != nil {
		s.store.Close()
		return fmt.Errorf("erro ao iniciar frota simulada: %w", err)
	}
	if s.physical != nil {
		s.physical.Launch()
	}

	if s.config.Discovery.Enabled {
		if err := s.discoveryService.Start(); err != nil {
			logger.Warnf("Erro ao iniciar serviço de descoberta: %v", err)
		}
	}
	if err := s.plcService.Start(); err != nil {
		logger.Errorf("Erro ao iniciar serviço PLC: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run()
		return nil
	})
	g.Go(func() error {
		return s.writer.Run(gctx)
	})
	g.Go(func() error {
		s.logServerInfo()
		logger.Infof("Iniciando servidor HTTP na porta %d", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("erro ao iniciar servidor HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		s.shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()

	// missões interrompidas no encerramento ainda precisam ser gravadas
	flushCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	s.writer.Flush(flushCtx)
	if cerr := s.store.Close(); cerr != nil {
		logger.Error("Erro ao fechar o Redis", cerr)
	}

	logger.Info("Shutdown completo")
	return err
}

func (s *Server) shutdown(ctx context.Context) {
	logger.Info("Iniciando shutdown do servidor")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Erro ao encerrar servidor HTTP: %v", err)
	}
	s.discoveryService.Stop()
	s.simulated.Stop()
	if s.physical != nil {
		s.physical.Stop()
	}
	s.plcService.Stop()
	s.hub.Shutdown()
}

// localIP obtém o endereço IP local
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "localhost"
}

// GetServerInfo retorna informações sobre o servidor
func (s *Server) GetServerInfo() ServerInfo {
	return s.serverInfo
}

func (s *Server) logServerInfo() {
	logger.Info("===============================================")
	logger.Info("             Fleet Mission Server              ")
	logger.Info("===============================================")
	logger.Infof("Versão: %s", s.serverInfo.Version)
	logger.Infof("Endereço IP: %s", s.serverInfo.IP)
	logger.Infof("Porta HTTP: %d", s.serverInfo.Port)
	logger.Infof("Porta da frota simulada: %d", s.serverInfo.SimPort)
	logger.Infof("WebSocket URL: %s", s.serverInfo.WebSocketURL)
	logger.Infof("API URL: %s", s.serverInfo.APIURL)
	if s.config.Discovery.Enabled {
		logger.Infof("mDNS: %s.%s.%s",
			s.discoveryService.InstanceName(),
			s.config.Discovery.Service,
			s.config.Discovery.Domain)
	}
	logger.Info("===============================================")
	logger.Info("Servidor pronto para conexões!")
}
