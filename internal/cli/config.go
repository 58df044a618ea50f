package cli

import (
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/cacherefresh"
	"github.com/unkn0wn-root/cacherefresh/auth"
)

const (
	cfgConfigFile   = "config"
	cfgEndpoint     = "endpoint"
	cfgSecret       = "secret"
	cfgService      = "service"
	cfgAudience     = "audience"
	cfgPageSize     = "page_size"
	cfgMaxRetries   = "max_retries"
	cfgRetryDelay   = "retry_delay"
	cfgKeysFile     = "keys_file"
	cfgBackend      = "backend"
	cfgRedisAddr    = "redis_addr"
	cfgRedisPrefix  = "redis_prefix"
	cfgNamespace    = "namespace"
	cfgGenTTL       = "gen_ttl"
	cfgReportFile   = "report_file"
	cfgReportFormat = "report_format"
	cfgMetricsFile  = "metrics_file"
	cfgLogLevel     = "log_level"

	envPrefix = "CACHEREFRESH"
)

const (
	backendGraphQL  = "graphql"
	backendRedis    = "redis"
	backendRedisGen = "redis-gen"
)

// legacyEnv maps config keys to the environment names older deployments set.
var legacyEnv = map[string]string{
	cfgEndpoint: "SERLO_ORG_HOST",
	cfgSecret:   "SECRET",
	cfgService:  "SERVICE",
	cfgPageSize: "PAGINATION",
}

// Config is the resolved configuration of one run.
type Config struct {
	Endpoint string
	Secret   string
	Service  string
	Audience string

	PageSize   int
	MaxRetries int
	RetryDelay time.Duration

	KeysFile    string
	Backend     string
	RedisAddr   string
	RedisPrefix string
	Namespace   string
	GenTTL      time.Duration

	ReportFile   string
	ReportFormat string
	MetricsFile  string
	LogLevel     string
}

func registerFlags(fs *flag.FlagSet) {
	fs.String(cfgConfigFile, "", "path to a config file (yaml, json or toml)")
	fs.String(cfgEndpoint, "", "GraphQL endpoint receiving the _updateCache mutation")
	fs.String(cfgSecret, "", "shared secret signing the service token")
	fs.String(cfgService, "", "service name used as token issuer")
	fs.String(cfgAudience, auth.DefaultAudience, "token audience")
	fs.Int(cfgPageSize, cacherefresh.DefaultPageSize, "keys per initial batch")
	fs.Int(cfgMaxRetries, cacherefresh.DefaultMaxRetries, "retries of a single failing key")
	fs.Duration(cfgRetryDelay, cacherefresh.DefaultRetryDelay, "wait before retrying a single key")
	fs.String(cfgKeysFile, "cache-keys.json", "file listing the keys to refresh")
	fs.String(cfgBackend, backendGraphQL, "invalidation backend: graphql, redis or redis-gen")
	fs.String(cfgRedisAddr, "localhost:6379", "redis address for the redis backends")
	fs.String(cfgRedisPrefix, "", "prefix prepended to keys deleted by the redis backend")
	fs.String(cfgNamespace, "cacherefresh", "generation namespace for the redis-gen backend")
	fs.Duration(cfgGenTTL, 0, "expiry of generation counters for the redis-gen backend, 0 keeps them")
	fs.String(cfgReportFile, "", "write the failure report here instead of stdout")
	fs.String(cfgReportFormat, "json", "report format: json, msgpack, cbor or proto")
	fs.String(cfgMetricsFile, "", "write Prometheus metrics in text format to this file")
	fs.String(cfgLogLevel, "info", "log level: debug, info, warn or error")
}

func newViper(fs *flag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return nil, err
		}
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	if path := v.GetString(cfgConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg := Config{
		Endpoint:     v.GetString(cfgEndpoint),
		Secret:       v.GetString(cfgSecret),
		Service:      v.GetString(cfgService),
		Audience:     v.GetString(cfgAudience),
		PageSize:     v.GetInt(cfgPageSize),
		MaxRetries:   v.GetInt(cfgMaxRetries),
		RetryDelay:   v.GetDuration(cfgRetryDelay),
		KeysFile:     v.GetString(cfgKeysFile),
		Backend:      strings.ToLower(v.GetString(cfgBackend)),
		RedisAddr:    v.GetString(cfgRedisAddr),
		RedisPrefix:  v.GetString(cfgRedisPrefix),
		Namespace:    v.GetString(cfgNamespace),
		GenTTL:       v.GetDuration(cfgGenTTL),
		ReportFile:   v.GetString(cfgReportFile),
		ReportFormat: strings.ToLower(v.GetString(cfgReportFormat)),
		MetricsFile:  v.GetString(cfgMetricsFile),
		LogLevel:     v.GetString(cfgLogLevel),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.KeysFile == "" {
		return fmt.Errorf("%s is required", cfgKeysFile)
	}
	switch c.Backend {
	case backendGraphQL:
		if c.Endpoint == "" {
			return fmt.Errorf("%s is required for the %s backend", cfgEndpoint, c.Backend)
		}
		if c.Secret == "" || c.Service == "" {
			return fmt.Errorf("%s and %s are required for the %s backend", cfgSecret, cfgService, c.Backend)
		}
	case backendRedis, backendRedisGen:
		if c.RedisAddr == "" {
			return fmt.Errorf("%s is required for the %s backend", cfgRedisAddr, c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.ReportFormat {
	case "json", "msgpack", "cbor", "proto":
	default:
		return fmt.Errorf("unknown %s %q", cfgReportFormat, c.ReportFormat)
	}
	return nil
}
