package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var processorCmd = &cobra.Command{
	Use:     "processor",
	Aliases: []string{"processors"},
	Short:   "Inspect available processors",
}

var processorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processors the service offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		processors, err := appInstance.API().ListProcessors(context.Background())
		if err != nil {
			return fmt.Errorf("加载失败: %w", err)
		}

		if len(processors) == 0 {
			fmt.Fprintln(out, "No processors found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLABEL\tDESCRIPTION")
		fmt.Fprintln(w, "--\t----\t-----\t-----------")
		for _, p := range processors {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Label(), p.Description)
		}
		w.Flush()
		return nil
	},
}

func init() {
	processorCmd.AddCommand(processorListCmd)
	rootCmd.AddCommand(processorCmd)
}
