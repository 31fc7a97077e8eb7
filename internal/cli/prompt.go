package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wxadmin/internal/api"
)

// confirm asks a y/N question on the command's input unless --yes was given.
func confirm(cmd *cobra.Command, question string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
	return false
}

// printResult prints a success notice and the server's message, if any.
func printResult(cmd *cobra.Command, notice string, res *api.Result) {
	out := cmd.OutOrStdout()
	if res != nil && res.Message != "" && res.Message != notice {
		fmt.Fprintf(out, "✓ %s: %s\n", notice, res.Message)
		return
	}
	fmt.Fprintf(out, "✓ %s\n", notice)
}
