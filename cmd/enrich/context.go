package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/tubebench/internal/app"
	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/logger"
)

type rootFlags struct {
	configPath string
	stagingDir string
	logLevel   string
	logFormat  string
}

// commandContext lazily builds the shared application for subcommands.
type commandContext struct {
	flags *rootFlags

	loggerOnce sync.Once
	log        *logger.Logger

	appOnce sync.Once
	app     *app.App
	appErr  error

	// registry is set by commands that expose metrics before the app is built.
	registry prometheus.Registerer
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) logger() *logger.Logger {
	c.loggerOnce.Do(func() {
		c.log = logger.New(&logger.Config{
			Level:       c.flags.logLevel,
			Format:      c.flags.logFormat,
			Output:      os.Stderr,
			ServiceName: "tubebench-enrich",
		})
		logger.SetDefaultLogger(c.log)
	})
	return c.log
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.appOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = app.New(ctx, cfg, c.logger(), app.Options{
			StagingDir: strings.TrimSpace(c.flags.stagingDir),
			Registerer: c.registry,
		})
	})
	return c.app, c.appErr
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}
