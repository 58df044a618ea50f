package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/cacherefresh"
	"github.com/unkn0wn-root/cacherefresh/auth"
	"github.com/unkn0wn-root/cacherefresh/genstore"
	"github.com/unkn0wn-root/cacherefresh/graphql"
	"github.com/unkn0wn-root/cacherefresh/hooks/promhooks"
	"github.com/unkn0wn-root/cacherefresh/keys"
	zaplog "github.com/unkn0wn-root/cacherefresh/log/zap"
	"github.com/unkn0wn-root/cacherefresh/report"
	redisstore "github.com/unkn0wn-root/cacherefresh/store/redis"
)

// ErrUnresolved is returned when some keys could not be invalidated.
var ErrUnresolved = errors.New("some cache keys could not be updated")

const httpTimeout = 30 * time.Second

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// invalidator builds the backend named by cfg. The returned closer releases it.
func invalidator(cfg Config) (cacherefresh.Invalidator, func(context.Context) error, error) {
	nop := func(context.Context) error { return nil }
	switch cfg.Backend {
	case backendGraphQL:
		c, err := graphql.New(graphql.Config{
			Endpoint:   cfg.Endpoint,
			HTTPClient: &http.Client{Timeout: httpTimeout},
			Auth: &auth.ServiceToken{
				Service:  cfg.Service,
				Secret:   []byte(cfg.Secret),
				Audience: cfg.Audience,
			},
		})
		return c, nop, err
	case backendRedis:
		s, err := redisstore.New(redisstore.Config{
			Client:      goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}),
			Prefix:      cfg.RedisPrefix,
			CloseClient: true,
		})
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil
	case backendRedisGen:
		gs := genstore.NewRedis(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}), cfg.Namespace, cfg.GenTTL)
		return genstore.Invalidator(gs), gs.Close, nil
	}
	return nil, nop, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// run performs one update and writes the report to out unless cfg.ReportFile is set.
func run(ctx context.Context, cfg Config, zl *zap.Logger, out io.Writer) error {
	list, err := keys.Load(cfg.KeysFile)
	if err != nil {
		return err
	}
	list = keys.Distinct(list)

	inv, closeInv, err := invalidator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeInv(context.Background()); cerr != nil {
			zl.Warn("closing backend failed", zap.Error(cerr))
		}
	}()

	reg := prometheus.NewRegistry()
	hooks, err := promhooks.New(reg)
	if err != nil {
		return err
	}

	opts := cacherefresh.DefaultOptions()
	opts.Invalidator = inv
	opts.PageSize = cfg.PageSize
	opts.MaxRetries = cfg.MaxRetries
	opts.RetryDelay = cfg.RetryDelay
	opts.Logger = zaplog.New(zl)
	opts.Hooks = hooks

	s, err := cacherefresh.New(opts)
	if err != nil {
		return err
	}

	zl.Info("updating cache",
		zap.String("backend", cfg.Backend),
		zap.Int("keys", len(list)),
		zap.Int("page_size", cfg.PageSize),
	)
	failures, err := s.Update(ctx, list)
	if err != nil {
		return err
	}

	if err := writeReport(cfg, report.New(len(list), failures), out); err != nil {
		return err
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if !failures.Succeeded() {
		zl.Error("cache update incomplete",
			zap.Int("failed_keys", len(failures.Keys())),
			zap.Error(failures.Err()),
		)
		return ErrUnresolved
	}
	zl.Info("Cache successfully updated", zap.Int("keys", len(list)))
	return nil
}

func writeReport(cfg Config, s report.Summary, out io.Writer) error {
	if cfg.ReportFile == "" {
		return report.Write(out, s, cfg.ReportFormat)
	}
	f, err := os.Create(cfg.ReportFile)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := report.Write(f, s, cfg.ReportFormat); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
