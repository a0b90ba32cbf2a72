package cli

import (
	"fmt"
	"strings"

	"github.com/chainguard-dev/region-proxy/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage default settings",
		Long: `Config manages the defaults 'region-proxy start' falls back to when a flag is
not given. Preferences are stored as YAML in the user's config directory.`,
	}

	cmd.AddCommand(
		a.configShowCmd(),
		a.configSetCmd("set-region", "REGION", config.KeyRegion, "Set the default region"),
		a.configSetCmd("set-port", "PORT", config.KeyPort, "Set the default local SOCKS port"),
		a.configSetCmd("set-instance-type", "TYPE", config.KeyInstanceType, "Set the default instance type"),
		a.configSetCmd("set-no-system-proxy", "true|false", config.KeyNoSystemProxy, "Set whether to skip system proxy configuration by default"),
		a.configSetCmd("set-profile", "PROFILE", config.KeyProfile, "Set the AWS profile to use"),
		a.configUnsetCmd(),
		a.configResetCmd(),
	)
	return cmd
}

func (a *app) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefs, err := a.preferences()
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			p.Blank()
			p.Title("Configuration")
			p.Blank()
			if prefs.IsEmpty() {
				p.Line("   No configuration set.")
				p.Blank()
				p.Hint("   Set defaults with:")
				p.Hint("     region-proxy config set-region <REGION>")
				p.Hint("     region-proxy config set-port <PORT>")
			} else {
				if r := prefs.DefaultRegion; r != nil {
					p.Field("Default region", fmt.Sprintf("%s (%s)", *r, config.RegionName(*r)))
				}
				if port := prefs.DefaultPort; port != nil {
					p.Field("Default port", *port)
				}
				if it := prefs.DefaultInstanceType; it != nil {
					p.Field("Instance type", *it)
				}
				if skip := prefs.NoSystemProxy; skip != nil {
					p.Field("Skip sys. proxy", *skip)
				}
				if profile := prefs.Profile; profile != nil {
					p.Field("AWS profile", *profile)
				}
			}
			p.Blank()
			p.Field("Config file", a.configPath)
			p.Blank()
			return nil
		},
	}
}

// describe renders the confirmation for setting 'key' in 'prefs'.
func describe(key config.Key, prefs *config.Preferences) string {
	switch key {
	case config.KeyRegion:
		return fmt.Sprintf("Default region set to: %s (%s)", *prefs.DefaultRegion, config.RegionName(*prefs.DefaultRegion))
	case config.KeyPort:
		return fmt.Sprintf("Default port set to: %d", *prefs.DefaultPort)
	case config.KeyInstanceType:
		return fmt.Sprintf("Default instance type set to: %s", *prefs.DefaultInstanceType)
	case config.KeyNoSystemProxy:
		if *prefs.NoSystemProxy {
			return "System proxy configuration will be skipped by default"
		}
		return "System proxy will be configured by default"
	case config.KeyProfile:
		return fmt.Sprintf("AWS profile set to: %s", *prefs.Profile)
	}
	return fmt.Sprintf("%s updated", key)
}

func (a *app) configSetCmd(use, arg string, key config.Key, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <" + arg + ">",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := a.preferences()
			if err != nil {
				return err
			}
			if err := prefs.Set(key, args[0]); err != nil {
				return err
			}
			if err := prefs.Save(a.configPath); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).Success("%s", describe(key, prefs))
			return nil
		},
	}
}

func (a *app) configUnsetCmd() *cobra.Command {
	keys := make([]string, 0, len(config.Keys))
	for _, k := range config.Keys {
		keys = append(keys, string(k))
	}

	return &cobra.Command{
		Use:       "unset <KEY>",
		Short:     "Clear a setting (" + strings.Join(keys, ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := a.preferences()
			if err != nil {
				return err
			}
			key := config.Key(args[0])
			if err := prefs.Unset(key); err != nil {
				return err
			}
			if err := prefs.Save(a.configPath); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).Success("Setting %q cleared", key)
			return nil
		},
	}
}

func (a *app) configResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			existed, err := config.Reset(a.configPath)
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			if !existed {
				p.Line("No configuration file to reset.")
				return nil
			}
			p.Success("Configuration reset to defaults")
			return nil
		},
	}
}
