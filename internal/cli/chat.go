package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wxadmin/internal/api"
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"chats"},
	Short:   "Manage chat processor assignments",
	Long:    "Add chats, assign processors to them, and remove them",
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats and their processors",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		processors, chats, err := loadAssignments(context.Background())
		if err != nil {
			return fmt.Errorf("加载失败: %w", err)
		}

		if len(chats) == 0 {
			fmt.Fprintln(out, "No chats configured.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHAT\tPROCESSORS")
		fmt.Fprintln(w, "----\t----------")
		for _, c := range chats {
			labels := "未配置处理器"
			if c.Processors.Len() > 0 {
				names := make([]string, len(c.Processors.Names))
				for i, id := range c.Processors.Names {
					names[i] = api.ProcessorLabel(processors, id)
				}
				labels = strings.Join(names, ", ")
			}
			fmt.Fprintf(w, "%s\t%s\n", c.ChatName, labels)
		}
		w.Flush()

		fmt.Fprintf(out, "\nTotal: %d chats\n", len(chats))
		return nil
	},
}

var chatAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := appInstance.API().AddChat(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("添加失败: %w", err)
		}
		printResult(cmd, "添加成功", res)
		return nil
	},
}

var chatSetCmd = &cobra.Command{
	Use:   "set <name> [processor...]",
	Short: "Replace a chat's processors",
	Long: `Replace the processors assigned to a chat. Processors may be given by id,
name or label. Giving none clears the assignment.`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeChatThenProcessors,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		processors, err := appInstance.API().ListProcessors(ctx)
		if err != nil {
			return fmt.Errorf("加载失败: %w", err)
		}
		ids, err := resolveProcessors(processors, args[1:])
		if err != nil {
			return err
		}

		res, err := appInstance.API().SetChatProcessors(ctx, args[0], ids)
		if err != nil {
			return fmt.Errorf("更新失败: %w", err)
		}
		printResult(cmd, "更新成功", res)
		return nil
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:               "delete <name>",
	Aliases:           []string{"rm"},
	Short:             "Delete a chat and its assignment",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeChatNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !confirm(cmd, fmt.Sprintf("确定要删除 \"%s\" 的配置吗？", name)) {
			return nil
		}

		res, err := appInstance.API().DeleteChat(context.Background(), name)
		if err != nil {
			return fmt.Errorf("删除失败: %w", err)
		}
		printResult(cmd, "删除成功", res)
		return nil
	},
}

// loadAssignments fetches the processor catalogue and chat assignments
// concurrently.
func loadAssignments(ctx context.Context) ([]*api.Processor, []*api.ChatProcessors, error) {
	client := appInstance.API()

	var processors []*api.Processor
	var chats []*api.ChatProcessors
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		processors, err = client.ListProcessors(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		chats, err = client.ListChatProcessors(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return processors, chats, nil
}

// resolveProcessors maps each argument to a processor id by id, name or
// label.
func resolveProcessors(processors []*api.Processor, args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		var id string
		for _, p := range processors {
			if arg == p.ID || arg == p.Name || arg == p.Label() {
				id = p.ID
				break
			}
		}
		if id == "" {
			return nil, fmt.Errorf("unknown processor: %s", arg)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func init() {
	chatDeleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatAddCmd)
	chatCmd.AddCommand(chatSetCmd)
	chatCmd.AddCommand(chatDeleteCmd)

	rootCmd.AddCommand(chatCmd)
}
