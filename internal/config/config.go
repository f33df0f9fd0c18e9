package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

const (
	WidgetAssistant = "assistant"
	WidgetTrivia    = "trivia"
)

const (
	UITerminal = "tui"
	UIPlain    = "plain"
)

// Config holds application configuration
type Config struct {
	Workflow  Workflow  `yaml:"workflow"`
	Assistant Assistant `yaml:"assistant"`
	Trivia    Trivia    `yaml:"trivia"`
	Log       Log       `yaml:"log"`
	Store     Store     `yaml:"store"`
	Server    Server    `yaml:"server"`

	// Runtime settings, set from command line flags
	Widget    string `yaml:"-" validate:"oneof=assistant trivia"`
	UI        string `yaml:"-" validate:"oneof=tui plain"`
	Serve     bool   `yaml:"-"`
	SessionID string `yaml:"-"`
	Debug     bool   `yaml:"-"`
}

// Workflow describes the remote "run workflow" endpoint
type Workflow struct {
	Endpoint string `yaml:"endpoint" env:"WORKFLOW_ENDPOINT" env-default:"https://api.mindstudio.ai/developer/v2/apps/run" validate:"required,url"`
	APIKey   string `yaml:"api_key" env:"WORKFLOW_API_KEY" validate:"required"`
	AppID    string `yaml:"app_id" env:"WORKFLOW_APP_ID" validate:"required,uuid"`
	// Zero means requests never time out
	Timeout time.Duration `yaml:"timeout" env:"WORKFLOW_TIMEOUT" env-default:"0s" validate:"gte=0"`
	// Requests per second across all sessions, zero disables throttling
	RateLimit float64 `yaml:"rate_limit" env:"WORKFLOW_RATE_LIMIT" env-default:"0" validate:"gte=0"`
}

type Assistant struct {
	Workflow string `yaml:"workflow" env:"ASSISTANT_WORKFLOW" env-default:"Chatbot.flow" validate:"required"`
}

type Trivia struct {
	Workflow string `yaml:"workflow" env:"TRIVIA_WORKFLOW" env-default:"NewportTrivia.flow" validate:"required"`
	// Query sent to obtain the opening question
	Seed string `yaml:"seed" env:"TRIVIA_SEED" env-default:"All things Newport" validate:"required"`
}

type Log struct {
	Dir   string `yaml:"dir" env:"LOG_DIR" env-default:"logs" validate:"required"`
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
}

type Store struct {
	Path     string `yaml:"path" env:"STORE_PATH" env-default:"chatbot.db"`
	Disabled bool   `yaml:"disabled" env:"STORE_DISABLED" env-default:"false"`
}

type Server struct {
	Addr string `yaml:"addr" env:"SERVER_ADDR" env-default:":8080" validate:"required"`
	// Sessions unused for this long are closed, zero keeps them forever
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"30m" validate:"gte=0"`
	// Zero means no limit
	MaxSessions int `yaml:"max_sessions" env:"SERVER_MAX_SESSIONS" env-default:"1000" validate:"gte=0"`
}

func (conf Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Group("workflow",
			slog.String("endpoint", conf.Workflow.Endpoint),
			slog.String("api_key", "<hidden>"),
			slog.String("app_id", conf.Workflow.AppID),
			slog.Duration("timeout", conf.Workflow.Timeout),
			slog.Float64("rate_limit", conf.Workflow.RateLimit),
		),
		slog.String("assistant_workflow", conf.Assistant.Workflow),
		slog.String("trivia_workflow", conf.Trivia.Workflow),
		slog.String("widget", conf.Widget),
		slog.String("ui", conf.UI),
		slog.Bool("serve", conf.Serve),
		slog.String("store", conf.Store.Path),
	)
}

// SlogLevel maps the configured level name to a slog level.
func (l Log) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads configuration from the environment (and .env), optionally
// layered over a YAML file, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	result := Config{
		Widget: WidgetAssistant,
		UI:     UITerminal,
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, oops.Errorf("failed to stat config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &result); err != nil {
			return nil, oops.Errorf("failed to read config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&result); err != nil {
		return nil, oops.Errorf("failed to read environment: %w", err)
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

// Validate checks the configuration, including values overridden by flags.
func (conf *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(conf); err != nil {
		return oops.Errorf("failed to validate config: %w", err)
	}
	return nil
}
