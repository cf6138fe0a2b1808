package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultStoreDriver        = "memory"
	defaultSessionWait        = 10 * time.Second
	defaultFeedInitial        = 500 * time.Millisecond
	defaultFeedMaxInterval    = 30 * time.Second
	defaultFeedPollInterval   = 2 * time.Second
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultTokenExpiry        = 24 * time.Hour
	defaultMaxUploadBytes     = 5 << 20
)

// HookTimeout bounds every fx start and stop hook that talks to an external system.
const HookTimeout = 10 * time.Second

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// App selects which application this process serves (customer, cook or admin).
	App *AppConfig `json:"app" yaml:"app"`

	// Store selects the document store backend.
	Store *StoreConfig `json:"store" yaml:"store"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Firestore *FirestoreConfig `json:"firestore" yaml:"firestore"`

	SecretKey struct {
		Access string `json:"access" yaml:"access"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	// Feed tunes change-feed retry and polling.
	Feed *FeedConfig `json:"feed" yaml:"feed"`

	// Redis backs idempotent order placement. Disabled falls back to in-process keys.
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	// Blob configures photo and document uploads.
	Blob *BlobConfig `json:"blob" yaml:"blob"`

	// Firebase configuration for push notifications
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// PubSub configuration for notification events
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	Metrics *MetricsConfig `json:"metrics" yaml:"metrics"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// AppConfig defines the application identity of this process.
type AppConfig struct {
	// Role is the only actor role allowed into this application.
	Role string `json:"role" yaml:"role" validate:"oneof=customer cook admin"`

	// DefaultDeliveryFee in minor currency units, used when the cook has not set one.
	DefaultDeliveryFee int64 `json:"defaultDeliveryFee" yaml:"defaultDeliveryFee" validate:"gte=0"`

	// SessionWaitTimeout bounds how long a login request waits for the session to resolve.
	SessionWaitTimeout time.Duration `json:"sessionWaitTimeout" yaml:"sessionWaitTimeout"`
}

// StoreConfig defines the document store backend.
type StoreConfig struct {
	// Driver is one of "memory", "postgres" or "firestore".
	Driver string `json:"driver" yaml:"driver" validate:"oneof=memory postgres firestore"`

	// SlowQueryThreshold marks postgres statements logged as slow. Zero keeps the default.
	SlowQueryThreshold time.Duration `json:"slowQueryThreshold" yaml:"slowQueryThreshold"`
}

// FirestoreConfig defines the Firestore client.
type FirestoreConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	DatabaseID      string `json:"databaseId" yaml:"databaseId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost  int           `json:"bcryptCost" yaml:"bcryptCost" validate:"omitempty,min=4,max=31"`
	TokenExpiry time.Duration `json:"tokenExpiry" yaml:"tokenExpiry"`
}

// FeedConfig defines change-feed retry behaviour.
type FeedConfig struct {
	InitialInterval time.Duration `json:"initialInterval" yaml:"initialInterval"`
	MaxInterval     time.Duration `json:"maxInterval" yaml:"maxInterval"`
	MaxElapsedTime  time.Duration `json:"maxElapsedTime" yaml:"maxElapsedTime"`

	// PollInterval is used by stores without native change feeds.
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// RedisConfig defines the Redis connection.
type RedisConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Addr           string        `json:"addr" yaml:"addr"`
	Password       string        `json:"password" yaml:"password"`
	DB             int           `json:"db" yaml:"db"`
	IdempotencyTTL time.Duration `json:"idempotencyTTL" yaml:"idempotencyTTL"`
}

// BlobConfig defines the upload bucket.
type BlobConfig struct {
	// BucketURL is a gocloud URL such as mem://, file:///var/uploads or gs://bucket.
	BucketURL string `json:"bucketUrl" yaml:"bucketUrl"`

	// PublicBaseURL is prefixed to object keys when the bucket cannot sign URLs.
	PublicBaseURL string `json:"publicBaseUrl" yaml:"publicBaseUrl"`

	SignedURLExpiry time.Duration `json:"signedUrlExpiry" yaml:"signedUrlExpiry"`
	MaxUploadBytes  int64         `json:"maxUploadBytes" yaml:"maxUploadBytes"`
}

// FirebaseConfig defines Firebase configuration for push notifications
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "noop", "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider" validate:"omitempty,oneof=noop local google"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App == nil {
		cfg.App = &AppConfig{}
	}
	if cfg.App.SessionWaitTimeout <= 0 {
		cfg.App.SessionWaitTimeout = defaultSessionWait
	}

	if cfg.Store == nil || strings.TrimSpace(cfg.Store.Driver) == "" {
		cfg.Store = &StoreConfig{Driver: defaultStoreDriver}
	}

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.TokenExpiry <= 0 {
		cfg.Auth.TokenExpiry = defaultTokenExpiry
	}

	if cfg.Feed == nil {
		cfg.Feed = &FeedConfig{}
	}
	if cfg.Feed.InitialInterval <= 0 {
		cfg.Feed.InitialInterval = defaultFeedInitial
	}
	if cfg.Feed.MaxInterval <= 0 {
		cfg.Feed.MaxInterval = defaultFeedMaxInterval
	}
	if cfg.Feed.PollInterval <= 0 {
		cfg.Feed.PollInterval = defaultFeedPollInterval
	}

	if cfg.Redis != nil && cfg.Redis.IdempotencyTTL <= 0 {
		cfg.Redis.IdempotencyTTL = defaultIdempotencyTTL
	}

	if cfg.Blob != nil && cfg.Blob.MaxUploadBytes <= 0 {
		cfg.Blob.MaxUploadBytes = defaultMaxUploadBytes
	}
}

// validate rejects settings the process cannot start with, such as an unknown
// app role or store driver.
func validate(cfg *Config) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if strings.TrimSpace(cfg.SecretKey.Access) == "" {
		return errors.New("invalid config: secretKey.access is required")
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
