package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StorageFS = "fs"
	StorageS3 = "s3"
)

type Config struct {
	Port               string   `envconfig:"PORT" default:"8080"`
	Environment        string   `envconfig:"ENV" default:"development"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	MaxUploadMB        int64    `envconfig:"MAX_UPLOAD_MB" default:"200"`

	// Content store
	DBDriver           string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath             string `envconfig:"DB_PATH" default:"courses.db"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING"`

	// Blob store
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"fs"`
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	S3URL          string `envconfig:"S3_URL"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`

	// Admin gate
	AdminEmail      string        `envconfig:"ADMIN_EMAIL" required:"true"`
	AdminPIN        string        `envconfig:"ADMIN_PIN"`
	AdminPINSecret  string        `envconfig:"ADMIN_PIN_SECRET"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	AdminSessionTTL time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"12h"`

	// Video lookup
	VideoLookupBaseURL    string `envconfig:"VIDEO_LOOKUP_BASE_URL" default:"https://www.youtube.com"`
	VideoLookupTimeoutSec int    `envconfig:"VIDEO_LOOKUP_TIMEOUT_SEC" default:"5"`
	VideoLookupMaxResults int    `envconfig:"VIDEO_LOOKUP_MAX_RESULTS" default:"10"`

	// Google Cloud
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubCourseTopic  string `envconfig:"PUBSUB_COURSE_TOPIC"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings envconfig cannot express on its own.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DBConnectionString == "" {
			errs = append(errs, errors.New("DB_CONNECTION_STRING is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}

	switch c.StorageBackend {
	case StorageFS:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for the fs storage backend"))
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend))
	}

	// envconfig accepts a variable that is set but empty.
	if c.AdminEmail == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.AdminPIN == "" && c.AdminPINSecret == "" {
		errs = append(errs, errors.New("one of ADMIN_PIN or ADMIN_PIN_SECRET must be set"))
	}
	if c.AdminPINSecret != "" && c.GCPProjectID == "" {
		errs = append(errs, errors.New("GCP_PROJECT_ID is required to read ADMIN_PIN_SECRET"))
	}
	if c.VideoLookupTimeoutSec <= 0 {
		errs = append(errs, errors.New("VIDEO_LOOKUP_TIMEOUT_SEC must be positive"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}

	return errors.Join(errs...)
}

// PubSubEnabled reports whether course events should go to Pub/Sub.
func (c *Config) PubSubEnabled() bool {
	return c.GCPProjectID != "" && c.PubSubCourseTopic != ""
}

func (c *Config) VideoLookupTimeout() time.Duration {
	return time.Duration(c.VideoLookupTimeoutSec) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
