package fleet

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fleet_go/internal/eventbus"
	"fleet_go/internal/models"
	"fleet_go/internal/radio"
	"fleet_go/internal/session"
	"fleet_go/pkg/logger"
)

// Loader compila e grava firmware nos drones físicos. logf recebe cada linha
// de saída do processo.
type Loader interface {
	Build(ctx context.Context, projectType, code string, logf func(string)) (bool, error)
	Flash(ctx context.Context, uris []string, logf func(string)) error
}

// PhysicalConfig configura a descoberta por rádio
type PhysicalConfig struct {
	MaxDrones    int
	ScanInterval time.Duration
}

// PhysicalController descobre drones pelo rádio e mantém uma sessão por URI.
// A URI é a chave no registro e o nome inicial do drone.
type PhysicalController struct {
	*base
	cfg    PhysicalConfig
	driver radio.Driver
	loader Loader

	loading atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	done    chan struct{}

	sessionsMu sync.Mutex
	sessions   map[string]*session.RadioSession
}

// NewPhysicalController cria o controlador; nada é varrido até Launch
func NewPhysicalController(cfg PhysicalConfig, driver radio.Driver, loader Loader, deps Deps) *PhysicalController {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PhysicalController{
		base:     newBase(models.MissionPhysical, deps),
		cfg:      cfg,
		driver:   driver,
		loader:   loader,
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		sessions: make(map[string]*session.RadioSession),
	}
}

// Launch inicia a espera pelo dongle e o loop de varredura. O canal retornado
// é fechado quando o loop termina.
func (c *PhysicalController) Launch() <-chan struct{} {
	c.done = make(chan struct{})
	c.running.Store(true)
	go c.run()
	return c.done
}

func (c *PhysicalController) run() {
	defer close(c.done)

	for !c.driver.DonglePresent(c.ctx) {
		logger.Warnf("Dongle de rádio não encontrado. Nova tentativa em %s", c.cfg.ScanInterval)
		if !c.wait() {
			return
		}
	}
	logger.Info("Dongle de rádio conectado")

	for c.running.Load() {
		if c.loading.Load() {
			logger.Debug("Carregamento de firmware em andamento; varredura pausada")
		} else {
			c.scan()
		}
		if !c.wait() {
			return
		}
	}
}

// wait dorme um intervalo de varredura; retorna false se o controlador parou
func (c *PhysicalController) wait() bool {
	select {
	case <-c.deps.Clock.After(c.cfg.ScanInterval):
		return c.running.Load()
	case <-c.stopCh:
		return false
	}
}

func (c *PhysicalController) scan() {
	uris, err := c.driver.Scan(c.ctx)
	if err != nil {
		logger.Warnf("Erro na varredura de rádio: %v", err)
		return
	}
	if len(uris) == 0 {
		logger.Debug("Nenhum drone encontrado na varredura")
	}
	for _, uri := range uris {
		c.sessionsMu.Lock()
		_, known := c.sessions[uri]
		full := c.cfg.MaxDrones > 0 && len(c.sessions) >= c.cfg.MaxDrones
		c.sessionsMu.Unlock()

		if full {
			logger.Debugf("Limite de %d drones físicos atingido", c.cfg.MaxDrones)
			return
		}
		if !known {
			c.open(uri)
		}
	}
}

func (c *PhysicalController) open(uri string) {
	s := session.NewRadioSession(uri, c.driver)
	bus := s.Bus()
	bus.Subscribe(eventbus.Connection, func(eventbus.Event[[]byte]) { c.onConnect(uri) })
	bus.Subscribe(eventbus.Message, func(ev eventbus.Event[[]byte]) { c.onFrame(uri, ev.Payload) })
	bus.Subscribe(eventbus.Error, func(ev eventbus.Event[[]byte]) { c.onError(uri, ev.Err) })
	bus.Subscribe(eventbus.Disconnection, func(eventbus.Event[[]byte]) { c.onDisconnect(uri) })

	c.sessionsMu.Lock()
	c.sessions[uri] = s
	c.sessionsMu.Unlock()

	logger.Infof("Abrindo link de rádio %s", uri)
	if err := s.Connect(); err != nil {
		logger.Warnf("Erro ao abrir link %s: %v", uri, err)
		c.forget(uri)
	}
}

func (c *PhysicalController) forget(uri string) {
	c.sessionsMu.Lock()
	delete(c.sessions, uri)
	c.sessionsMu.Unlock()
}

func (c *PhysicalController) defaultDrone(uri string) models.Drone {
	return models.Drone{
		Name:      uri,
		Timestamp: c.now(),
		State:     models.StateOnTheGround,
		Real:      true,
	}
}

func (c *PhysicalController) onConnect(uri string) {
	logger.Infof("Drone físico conectado em %s", uri)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.registry.Get(uri)
	d := c.defaultDrone(uri)
	if had {
		d = prev
	}
	c.registry.Set(uri, d)
	c.publishPulse(prev, had, d)
}

func (c *PhysicalController) onFrame(uri string, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.registry.Get(uri)
	if !had {
		prev = c.defaultDrone(uri)
	}
	cur, kind, err := session.ApplyFrame(prev, frame)
	if err != nil {
		logger.Warnf("Frame inválido de %s: %v", uri, err)
		return
	}
	cur.Timestamp = c.now()
	cur.Real = true
	c.registry.Set(uri, cur)

	c.publishPulse(prev, had, cur)
	c.feedLocked(cur, kind == session.FramePositionAndSensors)
}

func (c *PhysicalController) onError(uri string, err error) {
	logger.Warnf("Erro no link %s: %v", uri, err)
	// sem registro, a conexão nunca foi estabelecida: libera a URI para a próxima varredura
	if _, ok := c.registry.Get(uri); !ok {
		c.forget(uri)
	}
}

func (c *PhysicalController) onDisconnect(uri string) {
	logger.Infof("Drone físico desconectado de %s", uri)
	c.forget(uri)

	if !c.running.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.registry.Remove(uri); ok {
		c.dropDronesLocked([]models.Drone{d})
	}
}

// HandleCommand trata um comando do painel destinado à frota física
func (c *PhysicalController) HandleCommand(msg models.Message) {
	if msg.Type == models.TypeLoadProject {
		payload, err := msg.Decode()
		if err != nil {
			logger.Warnf("loadProject inválido: %v", err)
			return
		}
		c.LoadProject(*payload.(*models.LoadProjectData))
		return
	}
	c.route(msg, c.send)
}

func (c *PhysicalController) send(msg models.Message) {
	target := msg.Target()

	c.sessionsMu.Lock()
	var targets []*session.RadioSession
	if target == models.AllDrones {
		for _, s := range c.sessions {
			targets = append(targets, s)
		}
	} else if key, _, ok := c.registry.FindByName(target); ok {
		if s, ok := c.sessions[key]; ok {
			targets = append(targets, s)
		}
	}
	c.sessionsMu.Unlock()

	for _, s := range targets {
		if err := s.Send(msg); err != nil {
			logger.Warnf("Erro ao enviar %s para %s: %v", msg.Type, s.URI(), err)
		}
	}
}

// Loading indica se há um carregamento de firmware em andamento
func (c *PhysicalController) Loading() bool { return c.loading.Load() }

// LoadProject compila o firmware e grava em todos os drones conectados, em
// segundo plano. A varredura fica pausada até o fim. Retorna nil se outro
// carregamento já está em andamento; senão, um canal fechado ao terminar.
func (c *PhysicalController) LoadProject(data models.LoadProjectData) <-chan struct{} {
	if !c.loading.CompareAndSwap(false, true) {
		c.broadcast(models.TypeLoadProjectLog, models.LoadProjectLogData{Log: "Um carregamento de firmware já está em andamento"})
		return nil
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer c.loading.Store(false)

		ok := c.runLoad(data)
		c.broadcast(models.TypeLoadProject, models.LoadProjectResult{Success: ok})
	}()
	return finished
}

func (c *PhysicalController) runLoad(data models.LoadProjectData) bool {
	logf := func(line string) {
		c.broadcast(models.TypeLoadProjectLog, models.LoadProjectLogData{Log: line})
	}
	if c.loader == nil {
		logf("Nenhum carregador de firmware configurado")
		return false
	}

	logger.Infof("Compilando firmware %s", data.Type)
	ok, err := c.loader.Build(c.ctx, data.Type, data.Code, logf)
	if err != nil {
		logger.Error("Erro na compilação do firmware", err)
		logf(err.Error())
		return false
	}
	if !ok {
		return false
	}

	uris := c.releaseLinks()
	logger.Infof("Gravando firmware em %d drones", len(uris))
	if err := c.loader.Flash(c.ctx, uris, logf); err != nil {
		logger.Error("Erro na gravação do firmware", err)
		logf(err.Error())
		return false
	}
	return true
}

// releaseLinks fecha todos os links para que o gravador use o rádio
func (c *PhysicalController) releaseLinks() []string {
	c.sessionsMu.Lock()
	sessions := make([]*session.RadioSession, 0, len(c.sessions))
	uris := make([]string, 0, len(c.sessions))
	for uri, s := range c.sessions {
		sessions = append(sessions, s)
		uris = append(uris, uri)
	}
	c.sessionsMu.Unlock()

	for _, s := range sessions {
		s.ForceClose()
	}
	sort.Strings(uris)
	return uris
}

// Stop encerra o loop de varredura e fecha todos os links. Chamadas repetidas
// não têm efeito.
func (c *PhysicalController) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	logger.Info("Encerrando frota física")
	c.abortMission()
	close(c.stopCh)
	c.cancel()
	c.releaseLinks()
	c.registry.Clear()
}
