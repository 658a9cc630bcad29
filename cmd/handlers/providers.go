package handlers

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"innersight/internal/config"
)

// NewProvidersCmd creates the providers command
func NewProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List and select AI providers",
	}
	cmd.AddCommand(newProvidersListCmd())
	cmd.AddCommand(newProvidersUseCmd())
	return cmd
}

func newProvidersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACTIVE\tID\tMODEL\tREASONING\tAPI KEY")
			for _, id := range config.ProviderIDs(cfg) {
				p := cfg.AI.Providers[id]
				active := ""
				if id == cfg.AI.Active {
					active = "*"
				}
				key := "missing"
				if cfg.HasCredential(id) {
					key = "set"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", active, id, p.Model, p.Reasoning, key)
			}
			return w.Flush()
		},
	}
}

func newProvidersUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use ID",
		Short: "Make ID the active provider",
		Long: `Make ID the active provider by writing ai.active to the config file.

Only ai.active is changed; other keys in the file are kept and nothing from
the environment is written. A running server is switched with
PUT /api/providers/active instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			id := strings.ToLower(strings.TrimSpace(args[0]))
			if _, ok := cfg.AI.Providers[id]; !ok {
				return fmt.Errorf("unknown provider %q. Known providers: %s", args[0], strings.Join(config.ProviderIDs(cfg), ", "))
			}

			path, err := setActiveProvider(configPath(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active provider set to %s in %s\n", id, path)
			if !cfg.HasCredential(id) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s has no API key configured\n", id)
			}
			return nil
		},
	}
}

// configPath returns the file in use, or ./.innersight.yaml when none is.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return ".innersight.yaml"
}

// setActiveProvider rewrites ai.active in the config file at path using a
// fresh viper instance, so defaults and environment values stay out of it.
func setActiveProvider(path, id string) (string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("error reading config file: %w", err)
		}
	}
	v.Set("ai.active", id)
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
