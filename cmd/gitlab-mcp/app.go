package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	httpserver "github.com/fyrsmithlabs/gitlab-mcp/internal/http"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/mcp"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/secrets"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/telemetry"
)

// app holds everything constructed from one configuration.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	policy    *policy.Policy
	server    *mcp.Server

	restoreStdLog func()
}

// newApp loads configuration and wires logging, telemetry, the GitLab client
// and the tool server.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, cfg.Telemetry.Enabled)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	for _, problem := range tel.Health().Problems {
		logger.Warn(ctx, "telemetry degraded", zap.String("problem", problem))
	}

	client, err := gitlab.NewClient(gitlab.ClientConfig{
		BaseURL:    cfg.GitLab.APIURL,
		Token:      cfg.GitLab.Token,
		CookiePath: cfg.GitLab.AuthCookiePath,
	})
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	scrubCfg := secrets.DefaultConfig()
	scrubCfg.Gitleaks = cfg.Secrets.Gitleaks
	scrubber, err := secrets.New(scrubCfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create scrubber: %w", err)
	}

	srvCfg := mcp.DefaultConfig()
	srvCfg.Version = version
	srvCfg.Logger = logger
	srvCfg.Features = cfg.Features
	srvCfg.ScrubJobTraces = cfg.Secrets.ScrubJobTraces
	srvCfg.Telemetry = tel

	pol := policy.New(cfg.GitLab.ProjectID, cfg.GitLab.AllowedProjectIDs, cfg.GitLab.ReadOnly)
	server, err := mcp.NewServer(srvCfg, client, pol, scrubber)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create mcp server: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		policy:    pol,
		server:    server,
		// Libraries writing through the standard log package land in zap.
		restoreStdLog: zap.RedirectStdLog(logger.Underlying()),
	}, nil
}

// close flushes telemetry and logs. It never blocks longer than a few seconds.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.restoreStdLog()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// runServe serves MCP until ctx is cancelled.
func runServe(ctx context.Context, opts *options) error {
	a, err := newApp(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info(ctx, "starting gitlab-mcp",
		zap.String("version", version),
		zap.String("transport", a.cfg.Transport.Mode),
		zap.String("api_url", a.cfg.GitLab.APIURL),
		zap.Bool("read_only", a.cfg.GitLab.ReadOnly),
		zap.Any("default_project", a.policy.DefaultProject()),
	)

	switch a.cfg.Transport.Mode {
	case config.TransportStdio:
		err = a.server.Run(ctx)
	default:
		var hs *httpserver.Server
		hs, err = httpserver.NewServer(a.server, a.logger, a.telemetry, httpserver.FromSettings(a.cfg.Transport, version))
		if err == nil {
			err = hs.Run(ctx)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error(ctx, "server stopped", zap.Error(err))
		return err
	}
	a.logger.Info(ctx, "server shutdown complete")
	return nil
}
