package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level representa o nível de log
type Level int

const (
	// DEBUG nível para mensagens detalhadas de depuração
	DEBUG Level = iota
	// INFO nível para informações gerais
	INFO
	// WARN nível para avisos
	WARN
	// ERROR nível para erros
	ERROR
	// FATAL nível para erros fatais (encerra o programa)
	FATAL
)

// String retorna o nome do nível
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel converte o nome de um nível ("debug", "info", ...) em Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("nível de log desconhecido: %q", s)
}

// FileOptions controla a rotação dos arquivos de log
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileOptions são usadas quando EnableFileLogging recebe opções zeradas
var DefaultFileOptions = FileOptions{
	MaxSizeMB:  32,
	MaxBackups: 5,
	MaxAgeDays: 14,
	Compress:   true,
}

var (
	logLevel = INFO

	logOutput     io.Writer = os.Stdout
	errorOutput   io.Writer = os.Stderr
	fileOutput    io.WriteCloser
	fileOutputErr io.WriteCloser

	timeFormat = "2006-01-02 15:04:05.000"

	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger

	// Flag para incluir o nome do arquivo nos logs
	includeFile = true

	mu sync.Mutex

	initialized = false
)

// Init inicializa o logger
func Init() {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return
	}

	rebuildLocked(logOutput, errorOutput)
	initialized = true
}

func rebuildLocked(out, errOut io.Writer) {
	infoLogger = log.New(out, "", 0)
	warnLogger = log.New(out, "", 0)
	debugLogger = log.New(out, "", 0)
	errorLogger = log.New(errOut, "", 0)
}

// SetLevel define o nível mínimo de log
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
}

// GetLevel retorna o nível atual de log
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return logLevel
}

// IsDebugEnabled verifica se o nível de debug está habilitado
func IsDebugEnabled() bool {
	return GetLevel() <= DEBUG
}

// SetOutput define a saída para todos os logs
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	logOutput = w
	errorOutput = w
	rebuildLocked(w, w)
}

// EnableFileLogging habilita o log para arquivo com rotação.
// São criados dois arquivos: <prefix>.log e <prefix>_error.log.
func EnableFileLogging(logDir, prefix string, opts FileOptions) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("erro ao criar diretório de log: %w", err)
	}

	if opts == (FileOptions{}) {
		opts = DefaultFileOptions
	}
	if prefix == "" {
		prefix = "fleet"
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, prefix+".log"),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	errFile := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, prefix+"_error.log"),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	closeFilesLocked()
	fileOutput = logFile
	fileOutputErr = errFile

	// Terminal + arquivo
	rebuildLocked(io.MultiWriter(logOutput, logFile), io.MultiWriter(errorOutput, logFile, errFile))
	initialized = true
	return nil
}

func closeFilesLocked() {
	if fileOutput != nil {
		fileOutput.Close()
		fileOutput = nil
	}
	if fileOutputErr != nil {
		fileOutputErr.Close()
		fileOutputErr = nil
	}
}

// Sync fecha os arquivos de log abertos
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	closeFilesLocked()
	rebuildLocked(logOutput, errorOutput)
}

func logMessage(level Level, format string, args ...interface{}) {
	mu.Lock()
	minLevel := logLevel
	var loggerToUse *log.Logger
	switch level {
	case DEBUG:
		loggerToUse = debugLogger
	case INFO:
		loggerToUse = infoLogger
	case WARN:
		loggerToUse = warnLogger
	default:
		loggerToUse = errorLogger
	}
	mu.Unlock()

	if level < minLevel {
		return
	}

	timestamp := time.Now().Format(timeFormat)
	prefix := fmt.Sprintf("%-5s", level.String())

	var source string
	if includeFile {
		if _, file, line, ok := runtime.Caller(2); ok {
			source = fmt.Sprintf(" [%s:%d]", filepath.Base(file), line)
		}
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	if loggerToUse == nil {
		fmt.Fprintf(os.Stderr, "[%s] %s%s: %s\n", timestamp, prefix, source, msg)
	} else {
		loggerToUse.Printf("[%s] %s%s: %s", timestamp, prefix, source, msg)
	}

	if level == FATAL {
		panic(msg)
	}
}

// Debug escreve mensagem de log com nível DEBUG
func Debug(msg string) {
	logMessage(DEBUG, "%s", msg)
}

// Debugf escreve mensagem de log formatada com nível DEBUG
func Debugf(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info escreve mensagem de log com nível INFO
func Info(msg string) {
	logMessage(INFO, "%s", msg)
}

// Infof escreve mensagem de log formatada com nível INFO
func Infof(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warn escreve mensagem de log com nível WARN
func Warn(msg string) {
	logMessage(WARN, "%s", msg)
}

// Warnf escreve mensagem de log formatada com nível WARN
func Warnf(format string, args ...interface{}) {
	logMessage(WARN, format, args...)
}

// Error escreve mensagem de log com nível ERROR
func Error(msg string, err error) {
	if err != nil {
		logMessage(ERROR, "%s: %v", msg, err)
	} else {
		logMessage(ERROR, "%s", msg)
	}
}

// Errorf escreve mensagem de log formatada com nível ERROR
func Errorf(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// Fatal escreve mensagem de log com nível FATAL e encerra o programa
func Fatal(msg string, err error) {
	if err != nil {
		logMessage(FATAL, "%s: %v", msg, err)
	} else {
		logMessage(FATAL, "%s", msg)
	}
}
