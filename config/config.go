package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Chain   ChainConfig   `yaml:"chain"`
	Bot     BotConfig     `yaml:"bot"`
	LLM     LLMConfig     `yaml:"llm"`
	Discord DiscordConfig `yaml:"discord"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ChainConfig contiene la conexión RPC, la wallet y las direcciones de contratos.
type ChainConfig struct {
	RPCURL      string `yaml:"rpc_url"`
	ChainID     int64  `yaml:"chain_id"`
	PrivateKey  string `yaml:"private_key"` // hex, con o sin 0x; preferir PRIVATE_KEY en .env
	Competition string `yaml:"competition"`
	Periphery   string `yaml:"periphery"` // solo para query_mode=periphery
	Router      string `yaml:"router"`
	GasLimit    uint64 `yaml:"gas_limit"` // 0 = estimar
}

// BotConfig controla el loop de rondas.
type BotConfig struct {
	QueryMode            string    `yaml:"query_mode"` // competition | periphery
	PollIntervalSeconds  float64   `yaml:"poll_interval_seconds"`
	CycleIntervalSeconds float64   `yaml:"cycle_interval_seconds"`
	RetryDelaySeconds    float64   `yaml:"retry_delay_seconds"`
	DeadlineMinutes      float64   `yaml:"deadline_minutes"`
	DustThreshold        float64   `yaml:"dust_threshold"`
	SlippageBps          int       `yaml:"slippage_bps"` // 0 = amountOutMin 0
	HistoryWindow        int       `yaml:"history_window"`
	CandidatePcts        []float64 `yaml:"candidate_pcts"`
	Fee                  float64   `yaml:"fee"`
	CloseRounds          bool      `yaml:"close_rounds"`
	PromptFile           string    `yaml:"prompt_file"`
}

// LLMConfig configura el decisor basado en Gemini.
type LLMConfig struct {
	Enabled           bool    `yaml:"enabled"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	Temperature       float64 `yaml:"temperature"`
	TopP              float64 `yaml:"top_p"`
	TopK              int     `yaml:"top_k"`
	MaxOutputTokens   int     `yaml:"max_output_tokens"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// DiscordConfig configura el webhook de avisos. WebhookURL vacío = desactivado.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
	AvatarURL  string `yaml:"avatar_url"`
}

// StorageConfig controla el journal SQLite. DSN vacío = desactivado.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el endpoint de Prometheus. Addr vacío = desactivado.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

const (
	QueryModeCompetition = "competition"
	QueryModePeriphery   = "periphery"

	defaultRouter = "0x4A7b5Da61326A6379179b40d00F57E5bbDC962c2"
)

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse interpreta el YAML, aplica overrides de entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// PollInterval es la espera entre consultas mientras no hay ronda.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Bot.PollIntervalSeconds)
}

// CycleInterval es la espera entre ciclos de decisión.
func (c *Config) CycleInterval() time.Duration {
	return seconds(c.Bot.CycleIntervalSeconds)
}

// RetryDelay es la espera tras un fallo transitorio de consulta.
func (c *Config) RetryDelay() time.Duration {
	return seconds(c.Bot.RetryDelaySeconds)
}

// Deadline es el plazo que se pasa al router en cada swap.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.Bot.DeadlineMinutes * float64(time.Minute))
}

// Validate verifica los campos obligatorios para operar.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required (or RPC_URL)")
	}
	if c.Chain.PrivateKey == "" {
		return fmt.Errorf("chain.private_key is required (or PRIVATE_KEY)")
	}
	if c.Chain.Competition == "" {
		return fmt.Errorf("chain.competition is required (or COMPETITION_ADDRESS)")
	}
	switch c.Bot.QueryMode {
	case QueryModeCompetition:
	case QueryModePeriphery:
		if c.Chain.Periphery == "" {
			return fmt.Errorf("chain.periphery is required when bot.query_mode=periphery")
		}
	default:
		return fmt.Errorf("bot.query_mode must be one of: competition, periphery")
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required when llm is enabled (or GEMINI_API_KEY)")
	}
	if c.Bot.SlippageBps < 0 || c.Bot.SlippageBps >= 10_000 {
		return fmt.Errorf("bot.slippage_bps must be between 0 and 9999")
	}
	if c.Bot.Fee <= 0 || c.Bot.Fee > 1 {
		return fmt.Errorf("bot.fee must be in (0, 1], got %v", c.Bot.Fee)
	}
	for _, p := range c.Bot.CandidatePcts {
		if p <= 0 || p > 100 {
			return fmt.Errorf("bot.candidate_pcts values must be in (0, 100], got %v", p)
		}
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"RPC_URL", &cfg.Chain.RPCURL},
		{"PRIVATE_KEY", &cfg.Chain.PrivateKey},
		{"COMPETITION_ADDRESS", &cfg.Chain.Competition},
		{"PERIPHERY_ADDRESS", &cfg.Chain.Periphery},
		{"ROUTER_ADDRESS", &cfg.Chain.Router},
		{"GEMINI_API_KEY", &cfg.LLM.APIKey},
		{"WEBHOOK_URL", &cfg.Discord.WebhookURL},
		{"STORAGE_DSN", &cfg.Storage.DSN},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Chain.Router == "" {
		cfg.Chain.Router = defaultRouter
	}
	if cfg.Bot.QueryMode == "" {
		cfg.Bot.QueryMode = QueryModeCompetition
	}
	if cfg.Bot.PollIntervalSeconds <= 0 {
		cfg.Bot.PollIntervalSeconds = 2
	}
	if cfg.Bot.CycleIntervalSeconds <= 0 {
		cfg.Bot.CycleIntervalSeconds = 15
	}
	if cfg.Bot.RetryDelaySeconds <= 0 {
		cfg.Bot.RetryDelaySeconds = 5
	}
	if cfg.Bot.DeadlineMinutes <= 0 {
		cfg.Bot.DeadlineMinutes = 10
	}
	if cfg.Bot.DustThreshold <= 0 {
		cfg.Bot.DustThreshold = 0.0001
	}
	if cfg.Bot.HistoryWindow <= 0 {
		cfg.Bot.HistoryWindow = 10
	}
	if len(cfg.Bot.CandidatePcts) == 0 {
		cfg.Bot.CandidatePcts = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10}
	}
	if cfg.Bot.Fee == 0 {
		cfg.Bot.Fee = 0.997 // 0.3% fee del pool
	}
	if cfg.Bot.PromptFile == "" {
		cfg.Bot.PromptFile = "prompt.txt"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.Temperature <= 0 {
		cfg.LLM.Temperature = 2
	}
	if cfg.LLM.TopP <= 0 {
		cfg.LLM.TopP = 0.95
	}
	if cfg.LLM.TopK <= 0 {
		cfg.LLM.TopK = 40
	}
	if cfg.LLM.MaxOutputTokens <= 0 {
		cfg.LLM.MaxOutputTokens = 8192
	}
	if cfg.LLM.RequestsPerMinute <= 0 {
		cfg.LLM.RequestsPerMinute = 15
	}
	if cfg.Discord.Username == "" {
		cfg.Discord.Username = "Trading Competition"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
