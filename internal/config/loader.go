package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ranamudassir31/webpulse-ai/internal/aggregator"
	"github.com/ranamudassir31/webpulse-ai/internal/circuitbreaker"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/frontier"
	"github.com/ranamudassir31/webpulse-ai/internal/job"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
	"github.com/ranamudassir31/webpulse-ai/internal/retry"
	"github.com/ranamudassir31/webpulse-ai/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. WEBPULSE_SERVER_ADDRESS.
const EnvPrefix = "WEBPULSE"

// Loader reads configuration through a dedicated viper instance so cobra
// flags can be bound before Load is called.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment bindings applied.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Unprefixed aliases shared with the rest of the deployment tooling.
	_ = v.BindEnv("logger.level", EnvPrefix+"_LOGGER_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("app.environment", EnvPrefix+"_APP_ENVIRONMENT", "APP_ENV")

	return &Loader{v: v}
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads .env, the config file and the environment, then decodes and
// validates the result. An empty configFile searches ./config.yaml and
// ./config/config.yaml; a missing file is not an error in that case.
func (l *Loader) Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	if configFile != "" {
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("./config")
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg, err := decode(l.v.AllSettings())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFileUsed returns the path of the file read by Load, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func decode(settings map[string]any) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "webpulse")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.debug", false)

	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.output_paths", []string{"stdout"})

	// Server
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Fetcher
	v.SetDefault("fetcher.worker_count", domain.DefaultConcurrency)
	v.SetDefault("fetcher.user_agent", "WebPulse-Crawler/1.0")
	v.SetDefault("fetcher.request_timeout", "10s")
	v.SetDefault("fetcher.max_redirects", 5)
	v.SetDefault("fetcher.max_body_bytes", 10*1024*1024)
	v.SetDefault("fetcher.retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("fetcher.retry.initial_delay", retry.DefaultInitialDelay.String())
	v.SetDefault("fetcher.retry.max_delay", retry.DefaultMaxDelay.String())
	v.SetDefault("fetcher.retry.multiplier", retry.DefaultMultiplier)
	v.SetDefault("fetcher.retry.jitter_fraction", retry.DefaultJitterFraction)
	v.SetDefault("fetcher.retry.max_retry_after", retry.DefaultMaxRetryAfter.String())
	v.SetDefault("fetcher.breaker.failure_threshold", circuitbreaker.DefaultFailureThreshold)
	v.SetDefault("fetcher.breaker.cool_down", circuitbreaker.DefaultCoolDown.String())

	// Jobs
	def := domain.DefaultJobConfig()
	weights := aggregator.DefaultWeights()
	v.SetDefault("jobs.max_active_jobs", job.DefaultMaxActiveJobs)
	v.SetDefault("jobs.failure_rate_threshold", job.DefaultFailureRateThreshold)
	v.SetDefault("jobs.failure_rate_min_attempts", job.DefaultFailureRateMinAttempts)
	v.SetDefault("jobs.per_host_limit", frontier.DefaultPerHostLimit)
	v.SetDefault("jobs.max_pages_limit", job.DefaultMaxPagesLimit)
	v.SetDefault("jobs.max_depth_limit", job.DefaultMaxDepthLimit)
	v.SetDefault("jobs.max_concurrency_limit", job.DefaultMaxConcurrencyLimit)
	v.SetDefault("jobs.defaults.max_pages", def.MaxPages)
	v.SetDefault("jobs.defaults.max_depth", def.MaxDepth)
	v.SetDefault("jobs.defaults.concurrency", def.Concurrency)
	v.SetDefault("jobs.defaults.same_domain_only", def.SameDomainOnly)
	v.SetDefault("jobs.defaults.fetch_timeout_ms", def.FetchTimeoutMS)
	v.SetDefault("jobs.aggregator.target_words", aggregator.DefaultTargetWords)
	v.SetDefault("jobs.aggregator.weights.content_volume", weights.ContentVolume)
	v.SetDefault("jobs.aggregator.weights.link_health", weights.LinkHealth)
	v.SetDefault("jobs.aggregator.weights.duplication", weights.Duplication)
	v.SetDefault("jobs.aggregator.weights.seo", weights.SEO)

	// Store
	v.SetDefault("store.driver", store.DriverMemory)
	v.SetDefault("store.retention", job.DefaultRetention.String())
	v.SetDefault("store.sweep", job.DefaultSweepSchedule)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", "5432")
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "webpulse")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", store.DefaultRedisKeyPrefix)

	// Report
	v.SetDefault("report.format", string(report.DefaultFormat))
}
