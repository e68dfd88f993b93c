package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

// Store drivers
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config holds the project config values
type Config struct {
	URL          string `mapstructure:"db_uri"`
	DatabaseName string `mapstructure:"db_name"`
	BaseURL      string `mapstructure:"base_url"`
	Port         string `mapstructure:"port"`
	Environment  string `mapstructure:"environment"`

	StoreDriver string `mapstructure:"store_driver"`
	SQLDSN      string `mapstructure:"sql_dsn"`

	CloudinaryURL string `mapstructure:"cloudinary_url"`
	StorageFolder string `mapstructure:"storage_folder"`

	JWTSecret string `mapstructure:"jwt_secret"`

	SendgridAPIKey  string `mapstructure:"sendgrid_api_key"`
	MailFromName    string `mapstructure:"mail_from_name"`
	MailFromAddress string `mapstructure:"mail_from_address"`

	ModelPath          string  `mapstructure:"model_path"`
	LabelsPath         string  `mapstructure:"labels_path"`
	ModelThreads       int     `mapstructure:"model_threads"`
	DetectionThreshold float64 `mapstructure:"detection_threshold"`

	DraftTTL       time.Duration `mapstructure:"draft_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SweepSchedule  string        `mapstructure:"sweep_schedule"`
	SweepGrace     time.Duration `mapstructure:"sweep_grace"`
}

var keys = []string{
	"db_uri", "db_name", "base_url", "port", "environment",
	"store_driver", "sql_dsn",
	"cloudinary_url", "storage_folder",
	"jwt_secret",
	"sendgrid_api_key", "mail_from_name", "mail_from_address",
	"model_path", "labels_path", "model_threads", "detection_threshold",
	"draft_ttl", "request_timeout", "sweep_schedule", "sweep_grace",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("db_name", "lapor_sampah")
	v.SetDefault("store_driver", DriverMongo)
	v.SetDefault("sql_dsn", "lapor.db")
	v.SetDefault("storage_folder", "reports")
	v.SetDefault("mail_from_name", "Lapor Sampah")
	v.SetDefault("mail_from_address", "no-reply@lapor-sampah.id")
	v.SetDefault("model_threads", 2)
	v.SetDefault("detection_threshold", 0.5)
	v.SetDefault("draft_ttl", 2*time.Hour)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("sweep_schedule", "30 3 * * *")
	v.SetDefault("sweep_grace", 24*time.Hour)
}

// Load reads the configuration from the optional YAML file at path and the environment.
// Environment variables (DB_URI, PORT, ...) override the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo:
		if c.URL == "" {
			return fmt.Errorf("DB_URI is required for the %s store", c.StoreDriver)
		}
	case DriverSQLite, DriverMySQL:
		if c.SQLDSN == "" {
			return fmt.Errorf("SQL_DSN is required for the %s store", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	// an empty HMAC key would let anyone mint bearer tokens
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DetectionThreshold < 0 || c.DetectionThreshold > 1 {
		return fmt.Errorf("DETECTION_THRESHOLD must be within [0,1], got %v", c.DetectionThreshold)
	}
	return nil
}

// New sets up all config related services
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile loads the config from path and installs the global logger for its environment
func NewFromFile(path string) (*Config, error) {
	conf, err := Load(path)
	if err != nil {
		return nil, err
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Environment)
	if err != nil {
		return nil, err
	}
	_ = zap.ReplaceGlobals(logger)

	return conf, nil
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "local":
		return zap.NewExample(), nil
	default:
		return zap.NewDevelopment()
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	WriteError(w, httpStatusCode, models.MessageError{Message: message, Error: errString(err)})
}

// WriteError writes body as the error response with the given status code
func WriteError(w http.ResponseWriter, httpStatusCode int, body models.MessageError) {
	zap.S().Errorw(body.Message, "status", httpStatusCode, "error", body.Error)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(models.ErrorMessageResponse{Response: body})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
