// Package discovery anuncia o servidor da frota na rede local via mDNS, para
// que o painel e os simuladores encontrem as portas sem configuração.
package discovery

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"

	"fleet_go/internal/config"
	"fleet_go/pkg/logger"
)

// Service gerencia o anúncio mDNS
type Service struct {
	cfg          config.DiscoveryConfig
	server       *zeroconf.Server
	mutex        sync.Mutex
	instanceName string
	port         int
	simPort      int
	running      bool
	serverIP     string
}

// NewService cria o anúncio da porta HTTP; simPort é a porta TCP da frota simulada
func NewService(cfg config.DiscoveryConfig, port, simPort int) *Service {
	instanceName := cfg.Instance
	if instanceName == "" {
		hostname, _ := os.Hostname()
		instanceName = fmt.Sprintf("%s-fleet", hostname)
	}

	return &Service{
		cfg:          cfg,
		port:         port,
		simPort:      simPort,
		instanceName: instanceName,
	}
}

// Start registra o serviço. Chamadas repetidas não têm efeito.
func (s *Service) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	ip, err := localIP()
	if err != nil {
		return fmt.Errorf("erro ao obter IP local: %w", err)
	}
	s.serverIP = ip

	server, err := zeroconf.Register(
		s.instanceName,
		s.cfg.Service,
		s.cfg.Domain,
		s.port,
		txtRecords(ip, s.simPort),
		nil,
	)
	if err != nil {
		return fmt.Errorf("erro ao registrar serviço de descoberta: %w", err)
	}

	s.server = server
	s.running = true

	logger.Infof("Serviço de descoberta iniciado em %s:%d (mDNS: %s.%s)",
		ip, s.port, s.instanceName, s.cfg.Service)
	return nil
}

// Stop retira o anúncio
func (s *Service) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.running = false

	logger.Info("Serviço de descoberta parado")
}

// InstanceName retorna o nome anunciado
func (s *Service) InstanceName() string {
	return s.instanceName
}

// IsRunning verifica se o anúncio está ativo
func (s *Service) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

func txtRecords(ip string, simPort int) []string {
	return []string{
		"version=1.0",
		"ip=" + ip,
		"simPort=" + strconv.Itoa(simPort),
		"name=Fleet Mission Server",
	}
}

// localIP retorna o primeiro IPv4 que não é loopback
func localIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("não foi possível determinar o endereço IP local")
}
