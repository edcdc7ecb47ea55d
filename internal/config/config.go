package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	BaseURL       string        `yaml:"base_url"`
	DataDir       string        `yaml:"data_dir"`
	AdminEmails   []string      `yaml:"admin_emails"`
	RelayInterval time.Duration `yaml:"relay_interval"`
	// Project that tasks created by automations are filed under.
	AutomationProjectID string `yaml:"automation_project_id"`

	Email    EmailConfig    `yaml:"email"`
	AI       AIConfig       `yaml:"ai"`
	Temporal TemporalConfig `yaml:"temporal"`
	Log      LogConfig      `yaml:"log"`
}

type EmailConfig struct {
	FromEmail    string `yaml:"from_email"`
	ResendAPIKey string `yaml:"resend_api_key"`
	ResendURL    string `yaml:"resend_url"`
	SMTPEnabled  bool   `yaml:"smtp_enabled"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPass     string `yaml:"smtp_pass"`
}

type AIConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func Default() Config {
	return Config{
		Addr:          ":8080",
		BaseURL:       "http://localhost:8080",
		DataDir:       "data",
		RelayInterval: 30 * time.Second,
		Email: EmailConfig{
			FromEmail: "Coast <coast@resend.dev>",
			ResendURL: "https://api.resend.com/emails",
			SMTPPort:  "587",
		},
		AI: AIConfig{
			Model:   "gemini-2.0-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: 60 * time.Second,
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "COAST_OUTBOX_QUEUE",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(&cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.Addr = getEnv("COAST_ADDR", cfg.Addr)
	cfg.BaseURL = getEnv("COAST_BASE_URL", cfg.BaseURL)
	cfg.DataDir = getEnv("COAST_DATA_DIR", cfg.DataDir)
	cfg.RelayInterval = getEnvDuration("COAST_RELAY_INTERVAL", cfg.RelayInterval)
	cfg.AutomationProjectID = getEnv("COAST_AUTOMATION_PROJECT_ID", cfg.AutomationProjectID)
	if v := os.Getenv("COAST_ADMIN_EMAILS"); v != "" {
		cfg.AdminEmails = strings.Split(v, ",")
	}

	cfg.Email.FromEmail = getEnv("COAST_FROM_EMAIL", cfg.Email.FromEmail)
	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)
	cfg.Email.SMTPEnabled = strings.EqualFold(getEnv("SMTP_ENABLED", strconv.FormatBool(cfg.Email.SMTPEnabled)), "true")
	cfg.Email.SMTPHost = getEnv("SMTP_HOST", cfg.Email.SMTPHost)
	cfg.Email.SMTPPort = getEnv("SMTP_PORT", cfg.Email.SMTPPort)
	cfg.Email.SMTPUser = getEnv("SMTP_USER", cfg.Email.SMTPUser)
	cfg.Email.SMTPPass = getEnv("SMTP_PASS", cfg.Email.SMTPPass)

	cfg.AI.APIKey = getEnv("GEMINI_API_KEY", cfg.AI.APIKey)
	cfg.AI.Model = getEnv("COAST_AI_MODEL", cfg.AI.Model)
	cfg.AI.BaseURL = getEnv("COAST_AI_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Timeout = getEnvDuration("COAST_AI_TIMEOUT", cfg.AI.Timeout)

	cfg.Temporal.HostPort = getEnv("TEMPORAL_HOST_PORT", cfg.Temporal.HostPort)
	cfg.Temporal.Namespace = getEnv("TEMPORAL_NAMESPACE", cfg.Temporal.Namespace)
	cfg.Temporal.TaskQueue = getEnv("TEMPORAL_TASK_QUEUE", cfg.Temporal.TaskQueue)

	cfg.Log.Level = getEnv("COAST_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("COAST_LOG_FORMAT", cfg.Log.Format)

	return cfg, nil
}
