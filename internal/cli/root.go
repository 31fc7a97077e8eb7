package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wxadmin/internal/app"
	"wxadmin/internal/config"
	"wxadmin/internal/paths"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wxadmin",
	Short: "WeChat reminder and chat-processor admin client",
	Long: `wxadmin - terminal client for the WeChat reminder service

  Manage reminders, assign processors to chats, and keep the WeChat
  account logged in, from a full-screen TUI or from scripts.

  Quick start:
    wxadmin tui
    wxadmin reminder list
    wxadmin chat set 家人群 weather holiday
    wxadmin wechat status
    wxadmin wechat qrcode --out login.png

  Configuration is read from config.yaml in the config directory,
  WXADMIN_* environment variables, and the flags below. Values saved
  with "wxadmin settings set" apply when nothing else sets them.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initApp(cmd); err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

// initApp builds appInstance from the config file, environment and flags.
func initApp(cmd *cobra.Command) error {
	if appInstance != nil {
		return nil
	}
	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	appInstance, err = app.New(app.Options{Viper: v, Console: verbose})
	return err
}

func closeApp() error {
	if appInstance == nil {
		return nil
	}
	err := appInstance.Close()
	appInstance = nil
	return err
}

func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	file, _ := cmd.Flags().GetString("config")
	configDir := ""
	if file == "" {
		dir, err := paths.ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		configDir = dir
	}

	v, err := config.New(file, configDir)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	for key, flag := range map[string]string{
		config.KeyAPIBase:  "api",
		config.KeyLogLevel: "log-level",
		config.KeyDBPath:   "db",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// Execute executes the root command
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when RunE fails.
	_ = closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("api", "", "API base URL (default "+config.DefaultAPIBase+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "also write logs to stderr")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wxadmin %s\n", version)
	},
}
