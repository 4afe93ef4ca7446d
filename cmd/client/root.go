package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/client"
	"github.com/aeolun/afternoon/pkg/logging"
	"github.com/aeolun/afternoon/pkg/metrics"
)

// errConfigShown is returned after the config error screen was displayed
var errConfigShown = errors.New("invalid config")

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "afternoon",
		Short:         "Afternoon - terminal reader for forum threads",
		Long:          "Afternoon browses the threads of a forum channel, shows replies as an indented tree and posts replies and reactions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, version)
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate("afternoon version {{.Version}}\n")

	cmd.PersistentFlags().String("config", client.DefaultConfigPath(), "path to config file")
	cmd.PersistentFlags().String("state", "", "path to state database (overrides config)")

	cmd.AddCommand(
		newThreadsCmd(),
		newThreadCmd(),
		newReplyCmd(),
		newReactCmd(),
		newSettingsCmd(),
		newVersionCmd(version),
	)
	return cmd
}

// app holds what a command needs to talk to the service
type app struct {
	config   client.TOMLConfig
	state    *client.State
	settings *client.Settings
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	session  *client.Session
	closers  []func()
}

// loadConfig reads the file named by --config
func loadConfig(cmd *cobra.Command) (string, client.TOMLConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	config, err := client.LoadClientConfig(path)
	return path, config, err
}

// openState opens the state database from --state or the config
func openState(cmd *cobra.Command, config client.TOMLConfig) (*client.State, error) {
	path, _ := cmd.Flags().GetString("state")
	if path == "" {
		var err error
		path, err = config.GetStateDBPath()
		if err != nil {
			return nil, err
		}
	}
	return client.OpenState(path)
}

// newApp wires config, state, logging, metrics and a session. Logs go to
// logOutput, or to the configured log file when logOutput is nil.
func newApp(cmd *cobra.Command, config client.TOMLConfig, logOutput io.Writer) (*app, error) {
	a := &app{config: config}

	if logOutput == nil {
		path, err := config.GetLogFilePath()
		if err != nil {
			return nil, err
		}
		f, err := logging.OpenFile(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = f.Close() })
		logOutput = f
	}
	logCfg := config.LogConfig()
	logCfg.Output = logOutput
	logging.Init(logCfg)
	a.logger = logging.Logger

	state, err := openState(cmd, config)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	a.state = state
	a.closers = append(a.closers, func() { _ = state.Close() })
	a.settings = client.NewSettings(state)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	apiClient := api.NewClient(config.APIConfig(),
		api.WithLogger(logging.Component("api")),
		api.WithMetrics(a.metrics),
	)

	a.session = client.NewSession(apiClient, a.settings, client.SessionConfig{
		GuildID:      config.Forum.GuildID,
		ForumID:      config.Forum.ForumID,
		PageLimit:    config.Forum.PageLimit,
		Engine:       config.EngineConfig(),
		ReactionTags: config.UI.ReactionTags,
	}, logging.Component("session"), a.metrics)
	a.closers = append(a.closers, a.session.Close)

	return a, nil
}

// serveMetrics exposes /metrics when the config asks for it
func (a *app) serveMetrics(ctx context.Context) {
	addr := a.config.Metrics.ListenAddr
	if addr == "" {
		return
	}
	go func() {
		a.logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := metrics.Serve(ctx, addr, a.registry); err != nil {
			a.logger.Error().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
		}
	}()
}

// Close releases everything newApp opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// commandApp loads the config and wires an app logging to stderr
func commandApp(cmd *cobra.Command) (*app, error) {
	_, config, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd, config, os.Stderr)
}
