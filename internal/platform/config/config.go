// internal/platform/config/config.go
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/validator"
)

const envPrefix = "DROIDSWEEP_"

type Config struct {
	// Datos locales: estado de actualizaciones y feeds descargados
	DataDir       string
	IndicatorsDir string // vacío = <DataDir>/indicators

	// Análisis
	BundlePath     string
	Workers        int
	TimeoutS       int // segundos (0 = sin timeout)
	Scheduler      string
	Modules        []string
	BackupPassword string

	// IO
	OutputDir string
	Output    Output

	Updates Updates

	LogLevel string
}

type Output struct {
	NoTable     bool
	NoJSON      bool
	MetricsFile string
}

type Updates struct {
	IndexURL       string
	GitHubAPI      string
	GitHubToken    string `json:"-"`
	CheckInterval  time.Duration
	AutoCheck      bool
	RequestTimeout time.Duration
}

// DefaultConfig retorna una configuración por defecto.
func DefaultConfig() Config {
	return Config{
		DataDir:   defaultDataDir(),
		Workers:   4,
		TimeoutS:  0,
		Scheduler: "priority",
		OutputDir: "droidsweep_out",
		Updates: Updates{
			IndexURL:       "https://raw.githubusercontent.com/mvt-project/mvt-indicators/main/indicators.yaml",
			GitHubAPI:      "https://api.github.com",
			CheckInterval:  24 * time.Hour,
			AutoCheck:      true,
			RequestTimeout: 15 * time.Second,
		},
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".droidsweep"
	}
	return filepath.Join(home, ".droidsweep")
}

// FromEnv retorna los defaults sobrescritos por las variables DROIDSWEEP_*.
func FromEnv() Config {
	cfg := DefaultConfig()
	loadFromEnv(&cfg)
	return cfg
}

func loadFromEnv(cfg *Config) {
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("INDICATORS_DIR"); v != "" {
		cfg.IndicatorsDir = v
	}
	if v := getenv("BUNDLE"); v != "" {
		cfg.BundlePath = v
	}
	if v := getenv("WORKERS"); v != "" {
		cfg.Workers = parseInt(v, cfg.Workers)
	}
	if v := getenv("TIMEOUT"); v != "" {
		cfg.TimeoutS = parseInt(v, cfg.TimeoutS)
	}
	if v := getenv("SCHEDULER"); v != "" {
		cfg.Scheduler = v
	}
	if v := getenv("MODULES"); v != "" {
		cfg.Modules = splitList(v)
	}
	if v := getenv("BACKUP_PASSWORD"); v != "" {
		cfg.BackupPassword = v
	}
	if v := getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := getenv("NO_TABLE"); v != "" {
		cfg.Output.NoTable = parseBool(v)
	}
	if v := getenv("METRICS_FILE"); v != "" {
		cfg.Output.MetricsFile = v
	}
	if v := getenv("INDEX_URL"); v != "" {
		cfg.Updates.IndexURL = v
	}
	if v := getenv("GITHUB_API"); v != "" {
		cfg.Updates.GitHubAPI = v
	}
	// GITHUB_TOKEN sin prefijo también, como lo exportan los runners de CI
	if v := getenv("GITHUB_TOKEN"); v != "" {
		cfg.Updates.GitHubToken = v
	} else if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Updates.GitHubToken = v
	}
	if v := getenv("AUTO_CHECK"); v != "" {
		cfg.Updates.AutoCheck = parseBool(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// BindFlags registra los flags sobre fs usando los valores actuales de cfg
// como defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directorio de estado y feeds descargados")
	fs.StringVarP(&cfg.IndicatorsDir, "iocs", "i", cfg.IndicatorsDir, "Directorio de indicadores (default <data-dir>/indicators)")
	fs.StringVarP(&cfg.OutputDir, "out", "o", cfg.OutputDir, "Directorio de salida")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Módulos ejecutados en paralelo")
	fs.IntVarP(&cfg.TimeoutS, "timeout", "T", cfg.TimeoutS, "Timeout global en segundos (0 = sin timeout)")
	fs.StringVar(&cfg.Scheduler, "scheduler", cfg.Scheduler, "Orden de módulos: priority, weighted, fifo")
	fs.StringSliceVarP(&cfg.Modules, "module", "m", cfg.Modules, "Ejecutar solo estos módulos (repetible)")
	fs.StringVarP(&cfg.BackupPassword, "backup-password", "p", cfg.BackupPassword, "Contraseña de backups cifrados")

	fs.BoolVarP(&cfg.Output.NoTable, "no-table", "q", cfg.Output.NoTable, "Desactivar salida en tabla")
	fs.BoolVar(&cfg.Output.NoJSON, "no-json", cfg.Output.NoJSON, "No escribir el reporte JSON")
	fs.StringVar(&cfg.Output.MetricsFile, "metrics-file", cfg.Output.MetricsFile, "Escribir métricas prometheus en este fichero")

	fs.StringVar(&cfg.Updates.IndexURL, "index-url", cfg.Updates.IndexURL, "Índice remoto de feeds (http(s):// o file://)")
	fs.StringVar(&cfg.Updates.GitHubAPI, "github-api", cfg.Updates.GitHubAPI, "Base de la API de GitHub")
	fs.BoolVar(&cfg.Updates.AutoCheck, "auto-update", cfg.Updates.AutoCheck, "Actualizar indicadores si la última comprobación tiene más de un día")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error")
}

// Normalize limpia valores y valida los que no tienen arreglo.
func (c *Config) Normalize() error {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if strings.TrimSpace(c.IndicatorsDir) == "" {
		c.IndicatorsDir = filepath.Join(c.DataDir, "indicators")
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.TimeoutS < 0 {
		c.TimeoutS = 0
	}
	if c.OutputDir == "" {
		c.OutputDir = "droidsweep_out"
	}
	if c.Updates.CheckInterval <= 0 {
		c.Updates.CheckInterval = 24 * time.Hour
	}
	if c.Updates.RequestTimeout <= 0 {
		c.Updates.RequestTimeout = 15 * time.Second
	}

	var modules []string
	for _, m := range c.Modules {
		if m = strings.TrimSpace(strings.ToLower(m)); m != "" {
			modules = append(modules, m)
		}
	}
	c.Modules = modules

	c.Scheduler = strings.ToLower(strings.TrimSpace(c.Scheduler))
	switch c.Scheduler {
	case "":
		c.Scheduler = "priority"
	case "priority", "weighted", "fifo":
	default:
		return errors.Wrapf(errors.ErrConfiguration, "unknown scheduler %q", c.Scheduler)
	}

	def := DefaultConfig().Updates
	c.Updates.IndexURL = strings.TrimSpace(c.Updates.IndexURL)
	if c.Updates.IndexURL == "" {
		c.Updates.IndexURL = def.IndexURL
	}
	if strings.TrimSpace(c.Updates.GitHubAPI) == "" {
		c.Updates.GitHubAPI = def.GitHubAPI
	}
	if !validator.IsFeedURL(c.Updates.IndexURL) {
		return errors.Wrapf(errors.ErrConfiguration, "invalid index url %q", c.Updates.IndexURL)
	}
	if !validator.IsHTTPURL(c.Updates.GitHubAPI) {
		return errors.Wrapf(errors.ErrConfiguration, "invalid github api url %q", c.Updates.GitHubAPI)
	}
	c.Updates.GitHubAPI = validator.NormalizeURL(c.Updates.GitHubAPI)

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		c.LogLevel = "info"
	default:
		return errors.Wrapf(errors.ErrConfiguration, "unknown log level %q", c.LogLevel)
	}
	return nil
}

// ToJSON serializa la configuración (sin secretos) para debugging.
func (c Config) ToJSON() (string, error) {
	redacted := c
	if redacted.BackupPassword != "" {
		redacted.BackupPassword = "***"
	}
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Timeout devuelve la duración global, 0 si no hay límite.
func (c Config) Timeout() time.Duration {
	if c.TimeoutS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutS) * time.Second
}

// Helpers

func getenv(k string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + k))
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(v string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
