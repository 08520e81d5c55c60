// Package config loads the service configuration from an optional YAML
// file with environment variable overrides on top, so credentials never
// have to live on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Storage backends.
const (
	StorageSheet    = "sheet"
	StoragePostgres = "postgres"
)

type Config struct {
	Env        string     `yaml:"env" envconfig:"APP_ENV"`
	Storage    string     `yaml:"storage" envconfig:"STORAGE"`
	ShortCode  ShortCode  `yaml:"short_code"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Google     Google     `yaml:"google"`
	Postgres   Postgres   `yaml:"postgres"`
}

type ShortCode struct {
	Length   int    `yaml:"length" envconfig:"SHORT_CODE_LENGTH"`
	Alphabet string `yaml:"alphabet" envconfig:"SHORT_CODE_ALPHABET"`
	Salt     string `yaml:"salt" envconfig:"SHORT_CODE_SALT"`
	Strategy string `yaml:"strategy" envconfig:"SHORT_CODE_STRATEGY"`
}

type HTTPServer struct {
	Port           int           `yaml:"port" envconfig:"HTTP_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Google identifies the spreadsheet backend and the service account
// used to reach it. The private key may carry literal `\n` sequences,
// as pasted from a service account JSON file into an env var.
type Google struct {
	ServiceAccountEmail string `yaml:"service_account_email" envconfig:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	PrivateKey          string `yaml:"private_key" envconfig:"GOOGLE_PRIVATE_KEY"`
	TokenURL            string `yaml:"token_url" envconfig:"GOOGLE_TOKEN_URL"`
	SpreadsheetID       string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	SheetName           string `yaml:"sheet_name" envconfig:"SHEET_NAME"`
}

type Postgres struct {
	User     string `yaml:"user" envconfig:"POSTGRES_USER"`
	Password string `yaml:"password" envconfig:"POSTGRES_PASSWORD"`
	Host     string `yaml:"host" envconfig:"POSTGRES_HOST"`
	Port     int    `yaml:"port" envconfig:"POSTGRES_PORT"`
	DB       string `yaml:"db" envconfig:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" envconfig:"POSTGRES_SSLMODE"`

	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"POSTGRES_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"POSTGRES_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" envconfig:"POSTGRES_CONN_MAX_IDLE_TIME"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	ConnMaxIdleTime: 5 * time.Minute,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Load reads the YAML file at path, then applies environment variable
// overrides. An empty path skips the file and configures from defaults
// and the environment alone.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to process env: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.Storage = StorageSheet
	cfg.ShortCode = ShortCode{
		Length:   7,
		Strategy: "random",
	}
	cfg.HTTPServer = defaultHTTPServer
	cfg.Google = Google{
		TokenURL:  "https://oauth2.googleapis.com/token",
		SheetName: "Sheet1",
	}
	cfg.Postgres = defaultPostgres
}
