package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aeolun/afternoon/pkg/client"
	"github.com/aeolun/afternoon/pkg/client/assets"
	"github.com/aeolun/afternoon/pkg/client/ui"
	"github.com/aeolun/afternoon/pkg/logging"
)

// runTUI starts the terminal reader
func runTUI(cmd *cobra.Command, version string) error {
	configPath, config, err := loadConfig(cmd)
	if err != nil {
		if client.HandleConfigError(configPath, err) {
			return errConfigShown
		}
		return err
	}

	// stderr belongs to the renderer, so logs go to the log file
	a, err := newApp(cmd, config, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	a.serveMetrics(ctx)
	a.session.Start(ctx)

	iconPath, err := assets.WriteIcon(a.state.GetStateDir(), a.state)
	if err != nil {
		// Notifications still work with the notifier's default icon
		a.logger.Warn().Err(err).Msg("failed to write notification icon")
	}

	ui.ApplyTheme(a.settings.ForceDarkMode())

	model := ui.NewModel(ctx, a.session, ui.Options{
		Version:         version,
		TimestampFormat: config.UI.TimestampFormat,
		Notifications:   config.UI.Notifications,
		PollInterval:    config.PollInterval(),
		IconPath:        iconPath,
		Logger:          logging.Component("ui"),
	})
	defer model.Close()

	a.logger.Info().Str("version", version).Msg("starting")
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
