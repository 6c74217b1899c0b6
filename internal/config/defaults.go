package config

import "time"

// getDefaultConfig retorna uma configuração padrão
func getDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Simulated: SimulatedConfig{
			Host:      "0.0.0.0",
			Port:      3995,
			MaxDrones: 10,
		},
		Radio: RadioConfig{
			Enabled:      true,
			Host:         "127.0.0.1",
			ControlPort:  19849,
			BasePort:     19850,
			Count:        10,
			MaxDrones:    10,
			ScanInterval: 5 * time.Second,
			PingTimeout:  200 * time.Millisecond,
		},
		Mission: MissionConfig{
			SettlingPeriod:    5 * time.Second,
			DedupSeparation:   0.05,
			PathMinDistance:   0.1,
			ShapeLinkDistance: 0.25,
			Simulated:         TypeConfig{Scale: 0.01, MaxRange: 300},
			Physical:          TypeConfig{Scale: 0.001, MaxRange: 2000},
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			Prefix:       "fleet",
			Enabled:      true,
			CacheSize:    64,
			CacheTTL:     time.Hour,
			HistoryLimit: 1000,
		},
		PLC: PLCConfig{
			Enabled:      false,
			Host:         "192.168.1.100",
			Rack:         0,
			Slot:         1,
			DBNumber:     100,
			BatterySlots: 10,
			UpdateRate:   500 * time.Millisecond,
			Timeout:      5 * time.Second,
		},
		Firmware: FirmwareConfig{
			BuildCommand: []string{"docker", "run", "--rm", "-v", "firmware:/firmware", "fleet-firmware", "make", "{type}"},
			FlashCommand: []string{"python3", "-m", "cfloader", "flash", "{bin}", "stm32-fw", "-w", "{uri}"},
			SandboxPath:  "firmware/sandbox/src/main.cpp",
			BinaryPath:   "firmware/build/cf2.bin",
			WorkDir:      ".",
			Timeout:      10 * time.Minute,
		},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Instance: "fleet-server",
			Service:  "_fleet._tcp",
			Domain:   "local.",
		},
	}
}
