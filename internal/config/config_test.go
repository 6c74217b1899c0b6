package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Simulated.Port != 3995 {
		t.Errorf("defaults not applied: %+v", cfg.Server)
	}
	if cfg.Mission.SettlingPeriod != 5*time.Second {
		t.Errorf("SettlingPeriod = %v", cfg.Mission.SettlingPeriod)
	}
	if cfg.PLC.Enabled {
		t.Error("PLC enabled by default")
	}
}

func TestLoadJSONWithComments(t *testing.T) {
	path := writeFile(t, "fleet.json", `{
		// porta do painel
		"server": {"port": 9000},
		"simulated": {"port": 4000, "maxDrones": 3}, /* limite */
		"redis": {"enabled": false, "prefix": "lab"},
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 || cfg.Simulated.Port != 4000 || cfg.Simulated.MaxDrones != 3 {
		t.Errorf("file values not applied: %+v %+v", cfg.Server, cfg.Simulated)
	}
	if cfg.Redis.Enabled || cfg.Redis.Prefix != "lab" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("unset field lost its default: %d", cfg.Redis.Port)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "fleet.yaml", `
radio:
  host: 10.0.0.2
  count: 4
  scanInterval: 2s
mission:
  settlingPeriod: 3s
  physical:
    scale: 0.001
    maxRange: 1500
firmware:
  flashCommand: [echo, "{uri}"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Radio.Host != "10.0.0.2" || cfg.Radio.Count != 4 || cfg.Radio.ScanInterval != 2*time.Second {
		t.Errorf("radio = %+v", cfg.Radio)
	}
	if cfg.Mission.SettlingPeriod != 3*time.Second || cfg.Mission.Physical.MaxRange != 1500 {
		t.Errorf("mission = %+v", cfg.Mission)
	}
	if len(cfg.Firmware.FlashCommand) != 2 || cfg.Firmware.FlashCommand[1] != "{uri}" {
		t.Errorf("flashCommand = %v", cfg.Firmware.FlashCommand)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FLEET_SERVER_PORT", "7000")
	t.Setenv("FLEET_SIM_HOST", "127.0.0.1")
	t.Setenv("FLEET_REDIS_ENABLED", "false")
	t.Setenv("FLEET_PLC_ENABLED", "true")
	t.Setenv("FLEET_PLC_HOST", "10.1.1.1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 || cfg.Simulated.Host != "127.0.0.1" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Server, cfg.Simulated)
	}
	if cfg.Redis.Enabled || !cfg.PLC.Enabled || cfg.PLC.Host != "10.1.1.1" {
		t.Errorf("redis/plc = %+v %+v", cfg.Redis, cfg.PLC)
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad port env", env: map[string]string{"FLEET_SERVER_PORT": "abc"}},
		{name: "bad bool env", env: map[string]string{"FLEET_REDIS_ENABLED": "talvez"}},
		{name: "port out of range", file: `{"server": {"port": 70000}}`},
		{name: "zero drones", file: `{"simulated": {"maxDrones": 0}}`},
		{name: "broken json", file: `{"server": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "absent.json")
			if tt.file != "" {
				path = writeFile(t, "fleet.json", tt.file)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load succeeded")
			}
		})
	}
}
