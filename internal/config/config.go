package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. LABDESK_HTTP_ADDR.
const EnvPrefix = "LABDESK"

type Config struct {
	HTTPAddr       string        `mapstructure:"http_addr" validate:"required"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`

	// Lab-course backend
	LabAPIURL     string        `mapstructure:"lab_api_url" validate:"required,url"`
	LabAPITimeout time.Duration `mapstructure:"lab_api_timeout" validate:"gte=0"`
	TokenURL      string        `mapstructure:"token_url" validate:"omitempty,url"`
	ClientID      string        `mapstructure:"client_id" validate:"required_with=TokenURL"`
	ClientSecret  string        `mapstructure:"client_secret"`
	Scopes        []string      `mapstructure:"scopes"`

	JournalDriver string `mapstructure:"journal_driver" validate:"oneof=memory sqlite postgres mysql"`
	JournalDSN    string `mapstructure:"journal_dsn"`

	ReconcileMode string `mapstructure:"reconcile_mode" validate:"oneof=replace merge"`

	LogFormat      string `mapstructure:"log_format" validate:"oneof=text json"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// SetDefaults registers every key on v so AutomaticEnv can see them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("request_timeout", 30*time.Second)

	v.SetDefault("lab_api_url", "http://localhost:8081")
	v.SetDefault("lab_api_timeout", 15*time.Second)
	v.SetDefault("token_url", "")
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("scopes", "")

	v.SetDefault("journal_driver", "sqlite")
	v.SetDefault("journal_dsn", "")

	v.SetDefault("reconcile_mode", "replace")

	v.SetDefault("log_format", "text")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_enabled", true)
}

// Load reads configuration from (lowest to highest precedence) defaults,
// the optional config file, a .env file and LABDESK_* environment variables.
// Empty paths are skipped; a missing .env is not an error.
func Load(v *viper.Viper, configFile, dotEnv string) (Config, error) {
	if err := loadDotEnv(dotEnv); err != nil {
		return Config{}, err
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	cfg := Config{
		HTTPAddr:       v.GetString("http_addr"),
		CORSOrigins:    csv(v.GetString("cors_origins")),
		RequestTimeout: v.GetDuration("request_timeout"),
		LabAPIURL:      strings.TrimSpace(v.GetString("lab_api_url")),
		LabAPITimeout:  v.GetDuration("lab_api_timeout"),
		TokenURL:       strings.TrimSpace(v.GetString("token_url")),
		ClientID:       v.GetString("client_id"),
		ClientSecret:   v.GetString("client_secret"),
		Scopes:         csv(v.GetString("scopes")),
		JournalDriver:  strings.ToLower(v.GetString("journal_driver")),
		JournalDSN:     v.GetString("journal_dsn"),
		ReconcileMode:  strings.ToLower(v.GetString("reconcile_mode")),
		LogFormat:      strings.ToLower(v.GetString("log_format")),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		MetricsEnabled: v.GetBool("metrics_enabled"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads from the environment only.
func FromEnv() (Config, error) { return Load(viper.New(), "", "") }

var validate = validator.New()

func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
	}
	return err
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func csv(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
