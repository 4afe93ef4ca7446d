package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aeolun/afternoon/pkg/client"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change stored settings",
		Long:  "Read or change the settings kept in the state database.\nKeys: " + strings.Join(client.SettingKeys, ", "),
	}
	cmd.AddCommand(newSettingsGetCmd(), newSettingsSetCmd())
	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := settingsStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			keys := client.SettingKeys
			if len(args) == 1 {
				if err := checkSettingKey(args[0]); err != nil {
					return err
				}
				keys = args[:1]
			}
			return printSettings(cmd.OutOrStdout(), store, keys, len(args) == 0)
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Long:  "Change a setting. hidden_ids takes a comma separated list, an empty value clears it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSettingKey(args[0]); err != nil {
				return err
			}

			store, closeStore, err := settingsStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := setSetting(store, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}

// settingsStore opens only the state database; no service access is needed
func settingsStore(cmd *cobra.Command) (client.StateInterface, func(), error) {
	_, config, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	state, err := openState(cmd, config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return state, func() { _ = state.Close() }, nil
}

func checkSettingKey(key string) error {
	if !slices.Contains(client.SettingKeys, key) {
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(client.SettingKeys, ", "))
	}
	return nil
}

// getSetting returns the stored value of key in its text form
func getSetting(store client.StateInterface, key string) (string, error) {
	switch key {
	case "force_dark_mode":
		on, err := store.GetBool(key)
		return strconv.FormatBool(on), err
	case "hidden_ids":
		ids, err := store.GetStringSet(key)
		return strings.Join(ids, ","), err
	}
	return store.GetString(key)
}

// setSetting stores value under key, converting it to the key's type
func setSetting(store client.StateInterface, key, value string) error {
	settings := client.NewSettings(store)

	switch key {
	case "force_dark_mode":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("force_dark_mode must be true or false, got %q", value)
		}
		return settings.SetForceDarkMode(on)
	case "hidden_ids":
		var ids []string
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		return store.SetStringSet(key, ids)
	case "user_token":
		return settings.SetUserToken(value)
	case "channel_id":
		if value == "" {
			return settings.ClearChannelID()
		}
	}
	return store.SetString(key, value)
}

// printSettings writes "key = value" lines. Listing all keys masks the token.
func printSettings(w io.Writer, store client.StateInterface, keys []string, mask bool) error {
	for _, key := range keys {
		value, err := getSetting(store, key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if mask && key == "user_token" && value != "" {
			value = "(set)"
		}
		fmt.Fprintf(w, "%s = %s\n", key, value)
	}
	return nil
}
