package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wxadmin/internal/config"
	pkgerrors "wxadmin/pkg/errors"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"setting"},
	Short:   "View and change locally stored settings",
	Long: `Settings are kept in the local database and used when the config file,
environment and flags leave a value unset.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings with their stored and effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := appInstance.Storage.GetAllSettings(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tLABEL\tSTORED\tEFFECTIVE\tDEFAULT")
		fmt.Fprintln(w, "---\t-----\t------\t---------\t-------")
		for _, d := range config.SettingDefs {
			value, ok := stored[d.Key]
			if !ok {
				value = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Key, d.Label, value, appInstance.Effective(d.Key), d.Default)
		}
		return w.Flush()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Store a setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := appInstance.SaveSetting(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("保存失败: %w", err)
		}

		def, _ := config.LookupSetting(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "✓ 已保存 %s = %s\n", def.Label, value)
		if effective := appInstance.Effective(args[0]); effective != value {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s is overridden by the config file, environment or a flag (%s)\n", args[0], effective)
		}
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:               "reset <key>",
	Short:             "Remove a stored setting so its default applies",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := config.LookupSetting(args[0]); !ok {
			return fmt.Errorf("unknown setting: %s", args[0])
		}
		err := appInstance.Storage.DeleteSetting(context.Background(), args[0])
		if errors.Is(err, pkgerrors.ErrSettingNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not stored\n", args[0])
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to reset setting: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s reset\n", args[0])
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}
