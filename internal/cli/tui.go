package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"wxadmin/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Launch the full-screen terminal UI with tabs for reminders, chat processors,
WeChat status and local settings. The WeChat status is polled in the
background while the UI is open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tui.Run(appInstance); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
