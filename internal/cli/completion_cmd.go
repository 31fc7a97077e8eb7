package cli

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for wxadmin. Reminder ids, chat names,
processor ids and setting keys complete from the service and local store.

To load completions:

Bash:
  $ source <(wxadmin completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ wxadmin completion bash > /etc/bash_completion.d/wxadmin
  # macOS:
  $ wxadmin completion bash > $(brew --prefix)/etc/bash_completion.d/wxadmin

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ wxadmin completion zsh > "${fpath[1]}/_wxadmin"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ wxadmin completion fish | source
  # To load completions for each session, execute once:
  $ wxadmin completion fish > ~/.config/fish/completions/wxadmin.fish

PowerShell:
  PS> wxadmin completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, run:
  PS> wxadmin completion powershell > wxadmin.ps1
  # and source this file from your PowerShell profile.
`,
	// Generating a script needs no store or service.
	PersistentPreRunE:     func(cmd *cobra.Command, args []string) error { return nil },
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
