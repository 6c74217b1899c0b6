package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"fleet_go/internal/config"
	"fleet_go/internal/server"
	"fleet_go/pkg/logger"
)

func main() {
	configPath := flag.StringP("config", "c", "config.json", "arquivo de configuração (.json ou .yaml)")
	logLevel := flag.String("log-level", "", "nível de log (debug, info, warn, error)")
	logDir := flag.String("log-dir", "", "diretório dos arquivos de log")
	flag.Parse()

	logger.Init()
	defer logger.Sync()

	displayBanner()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Erro ao carregar configurações", err)
	}

	if flag.CommandLine.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flag.CommandLine.Changed("log-dir") {
		cfg.Log.Dir = *logDir
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("%v, usando info", err)
	}
	logger.SetLevel(level)

	if cfg.Log.Dir != "" {
		if err := logger.EnableFileLogging(cfg.Log.Dir, "fleet", logger.DefaultFileOptions); err != nil {
			logger.Error("Erro ao habilitar log em arquivo", err)
		}
	}

	logger.Info("Iniciando Fleet Mission Server")
	logger.Infof("Configuração carregada: frota simulada em %s:%d, Redis em %s:%d",
		cfg.Simulated.Host, cfg.Simulated.Port, cfg.Redis.Host, cfg.Redis.Port)

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Erro ao criar servidor", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Servidor encerrado com erro", err)
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Servidor encerrado com sucesso")
}

// displayBanner exibe um banner de inicialização
func displayBanner() {
	banner := `
 _______ _     _______ _______ _______
 |______ |     |______ |______    |
 |       |_____|______ |______    |   MISSION SERVER  v1.0
 `
	fmt.Println(banner)
	fmt.Printf("Iniciando em %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
}
