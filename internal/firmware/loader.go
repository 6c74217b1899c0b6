// Package firmware compila projetos de firmware e grava o binário nos drones
// físicos por meio de comandos externos (container de build e bootloader).
package firmware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fleet_go/pkg/logger"
)

// Tipos de projeto aceitos
const (
	ProjectCDR     = "cdr"
	ProjectRR      = "rr"
	ProjectSandbox = "sandbox"
)

// ErrUnknownProject indica um tipo de projeto fora da lista
var ErrUnknownProject = errors.New("tipo de projeto desconhecido")

// Config descreve os comandos externos. Os argumentos aceitam os marcadores
// {type}, {bin} e {uri}.
type Config struct {
	BuildCommand []string
	FlashCommand []string
	SandboxPath  string
	BinaryPath   string
	WorkDir      string
	Timeout      time.Duration
}

// CommandLoader executa o build e a gravação como processos
type CommandLoader struct {
	cfg Config
}

// NewCommandLoader cria o carregador
func NewCommandLoader(cfg Config) *CommandLoader {
	return &CommandLoader{cfg: cfg}
}

func validProject(t string) bool {
	return t == ProjectCDR || t == ProjectRR || t == ProjectSandbox
}

func expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, "{"+k+"}", v)
		}
		out[i] = a
	}
	return out
}

// Build compila o projeto. Para sandbox, o código é gravado em SandboxPath
// antes do build. Retorna false quando o build falha ou não gera o binário.
func (l *CommandLoader) Build(ctx context.Context, projectType, code string, logf func(string)) (bool, error) {
	if !validProject(projectType) {
		return false, fmt.Errorf("%w: %q", ErrUnknownProject, projectType)
	}
	if len(l.cfg.BuildCommand) == 0 {
		return false, errors.New("comando de build não configurado")
	}

	if projectType == ProjectSandbox {
		if err := os.MkdirAll(filepath.Dir(l.cfg.SandboxPath), 0755); err != nil {
			return false, fmt.Errorf("erro ao preparar sandbox: %w", err)
		}
		if err := os.WriteFile(l.cfg.SandboxPath, []byte(code), 0644); err != nil {
			return false, fmt.Errorf("erro ao gravar código do sandbox: %w", err)
		}
	}

	args := expand(l.cfg.BuildCommand, map[string]string{"type": projectType, "bin": l.cfg.BinaryPath})
	if err := l.run(ctx, args, []string{"CF2_PROJECT=" + projectType}, logf); err != nil {
		logf(fmt.Sprintf("Compilação falhou: %v", err))
		return false, nil
	}

	info, err := os.Stat(l.cfg.BinaryPath)
	if err != nil {
		logf(fmt.Sprintf("Binário %s não encontrado", l.cfg.BinaryPath))
		return false, nil
	}
	if info.Size() == 0 {
		logf(fmt.Sprintf("Binário %s vazio", l.cfg.BinaryPath))
		return false, nil
	}
	logf("Código compilado com sucesso")
	return true, nil
}

// Flash grava o binário em cada URI. Uma falha não interrompe as demais;
// os erros são agregados.
func (l *CommandLoader) Flash(ctx context.Context, uris []string, logf func(string)) error {
	if len(l.cfg.FlashCommand) == 0 {
		return errors.New("comando de gravação não configurado")
	}
	var errs []error
	for _, uri := range uris {
		logf(fmt.Sprintf("Gravando %s...", uri))
		args := expand(l.cfg.FlashCommand, map[string]string{"uri": uri, "bin": l.cfg.BinaryPath})
		if err := l.run(ctx, args, nil, logf); err != nil {
			logf(fmt.Sprintf("...falha em %s: %v", uri, err))
			errs = append(errs, fmt.Errorf("%s: %w", uri, err))
			continue
		}
		logf("...sucesso")
	}
	return errors.Join(errs...)
}

// run executa args e repassa cada linha de stdout/stderr a logf
func (l *CommandLoader) run(ctx context.Context, args []string, env []string, logf func(string)) error {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = l.cfg.WorkDir
	cmd.Env = append(os.Environ(), env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	logger.Debugf("Executando %s", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("erro ao iniciar %s: %w", args[0], err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	stream := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			mu.Lock()
			logf(scanner.Text())
			mu.Unlock()
		}
	}
	wg.Add(2)
	go stream(stdout)
	go stream(stderr)
	wg.Wait()

	return cmd.Wait()
}
