package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config representa a configuração completa da aplicação
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Simulated SimulatedConfig `json:"simulated" yaml:"simulated"`
	Radio     RadioConfig     `json:"radio" yaml:"radio"`
	Mission   MissionConfig   `json:"mission" yaml:"mission"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	PLC       PLCConfig       `json:"plc" yaml:"plc"`
	Firmware  FirmwareConfig  `json:"firmware" yaml:"firmware"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
}

// ServerConfig contém configurações do servidor HTTP/WebSocket
type ServerConfig struct {
	Port            int           `json:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
}

// LogConfig contém o nível e o diretório dos arquivos de log
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	Dir   string `json:"dir" yaml:"dir"`
}

// SimulatedConfig contém o endereço de escuta da frota simulada
type SimulatedConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	MaxDrones int    `json:"maxDrones" yaml:"maxDrones"`
}

// RadioConfig contém os parâmetros do enlace de rádio da frota física
type RadioConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Host         string        `json:"host" yaml:"host"`
	ControlPort  int           `json:"controlPort" yaml:"controlPort"`
	BasePort     int           `json:"basePort" yaml:"basePort"`
	Count        int           `json:"count" yaml:"count"`
	MaxDrones    int           `json:"maxDrones" yaml:"maxDrones"`
	ScanInterval time.Duration `json:"scanInterval" yaml:"scanInterval"`
	PingTimeout  time.Duration `json:"pingTimeout" yaml:"pingTimeout"`
}

// TypeConfig contém escala e alcance máximo dos sensores de um tipo de frota
type TypeConfig struct {
	Scale    float64 `json:"scale" yaml:"scale"`
	MaxRange int     `json:"maxRange" yaml:"maxRange"`
}

// MissionConfig contém as constantes geométricas das missões
type MissionConfig struct {
	SettlingPeriod    time.Duration `json:"settlingPeriod" yaml:"settlingPeriod"`
	DedupSeparation   float64       `json:"dedupSeparation" yaml:"dedupSeparation"`
	PathMinDistance   float64       `json:"pathMinDistance" yaml:"pathMinDistance"`
	ShapeLinkDistance float64       `json:"shapeLinkDistance" yaml:"shapeLinkDistance"`
	Simulated         TypeConfig    `json:"simulated" yaml:"simulated"`
	Physical          TypeConfig    `json:"physical" yaml:"physical"`
}

// RedisConfig contém configurações do Redis
type RedisConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	Password     string        `json:"password" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	Prefix       string        `json:"prefix" yaml:"prefix"`
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	CacheSize    int           `json:"cacheSize" yaml:"cacheSize"`
	CacheTTL     time.Duration `json:"cacheTTL" yaml:"cacheTTL"`
	HistoryLimit int           `json:"historyLimit" yaml:"historyLimit"`
}

// PLCConfig contém configurações para comunicação com o PLC da base
type PLCConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Host         string        `json:"host" yaml:"host"`
	Rack         int           `json:"rack" yaml:"rack"`
	Slot         int           `json:"slot" yaml:"slot"`
	DBNumber     int           `json:"dbNumber" yaml:"dbNumber"`
	BatterySlots int           `json:"batterySlots" yaml:"batterySlots"`
	UpdateRate   time.Duration `json:"updateRate" yaml:"updateRate"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// FirmwareConfig contém os comandos de compilação e gravação
type FirmwareConfig struct {
	BuildCommand []string      `json:"buildCommand" yaml:"buildCommand"`
	FlashCommand []string      `json:"flashCommand" yaml:"flashCommand"`
	SandboxPath  string        `json:"sandboxPath" yaml:"sandboxPath"`
	BinaryPath   string        `json:"binaryPath" yaml:"binaryPath"`
	WorkDir      string        `json:"workDir" yaml:"workDir"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// DiscoveryConfig contém o anúncio mDNS do servidor
type DiscoveryConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Instance string `json:"instance" yaml:"instance"`
	Service  string `json:"service" yaml:"service"`
	Domain   string `json:"domain" yaml:"domain"`
}

// Load carrega a configuração: valores padrão, depois o arquivo (se existir)
// e por fim as variáveis de ambiente. path vazio usa config.json.
func Load(path string) (*Config, error) {
	config := getDefaultConfig()

	if path == "" {
		path = "config.json"
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler %s: %w", path, err)
		}
		if err := decode(path, data, &config); err != nil {
			return nil, fmt.Errorf("erro ao interpretar %s: %w", path, err)
		}
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return json.Unmarshal(jsonc.ToJSON(data), config)
	}
}

// applyEnvironmentOverrides sobrescreve configurações com variáveis FLEET_*
func applyEnvironmentOverrides(config *Config) error {
	strs := map[string]*string{
		"FLEET_SIM_HOST":       &config.Simulated.Host,
		"FLEET_REDIS_HOST":     &config.Redis.Host,
		"FLEET_REDIS_PASSWORD": &config.Redis.Password,
		"FLEET_RADIO_HOST":     &config.Radio.Host,
		"FLEET_PLC_HOST":       &config.PLC.Host,
		"FLEET_LOG_LEVEL":      &config.Log.Level,
	}
	for env, dst := range strs {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FLEET_SERVER_PORT": &config.Server.Port,
		"FLEET_SIM_PORT":    &config.Simulated.Port,
		"FLEET_REDIS_PORT":  &config.Redis.Port,
	}
	for env, dst := range ints {
		if v, ok := os.LookupEnv(env); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s inválido: %w", env, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"FLEET_REDIS_ENABLED": &config.Redis.Enabled,
		"FLEET_PLC_ENABLED":   &config.PLC.Enabled,
		"FLEET_RADIO_ENABLED": &config.Radio.Enabled,
	}
	for env, dst := range bools {
		if v, ok := os.LookupEnv(env); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s inválido: %w", env, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate verifica valores que impediriam a inicialização
func (c *Config) Validate() error {
	ports := map[string]int{
		"server.port":    c.Server.Port,
		"simulated.port": c.Simulated.Port,
	}
	for name, p := range ports {
		if p < 0 || p > 65535 {
			return fmt.Errorf("%s fora do intervalo: %d", name, p)
		}
	}
	if c.Simulated.MaxDrones <= 0 || c.Radio.MaxDrones <= 0 {
		return fmt.Errorf("maxDrones deve ser positivo")
	}
	if c.Mission.Simulated.Scale <= 0 || c.Mission.Physical.Scale <= 0 {
		return fmt.Errorf("escala de missão deve ser positiva")
	}
	if c.Radio.Enabled && c.Radio.Count <= 0 {
		return fmt.Errorf("radio.count deve ser positivo")
	}
	return nil
}
