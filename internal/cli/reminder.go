package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wxadmin/internal/api"
)

var reminderCmd = &cobra.Command{
	Use:     "reminder",
	Aliases: []string{"reminders", "remind"},
	Short:   "Manage reminders",
	Long:    "List, add, update and delete scheduled reminders",
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		out := cmd.OutOrStdout()

		reminders, err := appInstance.API().ListReminders(ctx)
		if err != nil {
			return fmt.Errorf("加载失败: %w", err)
		}

		if len(reminders) == 0 {
			fmt.Fprintln(out, "No reminders found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tSCHEDULE\tCHATS\tDESCRIPTION")
		fmt.Fprintln(w, "--\t-----\t------\t--------\t-----\t-----------")
		for _, r := range reminders {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Title, enabledLabel(bool(r.Enabled)), api.FormatSchedule(r),
				api.JoinChatNames(r.ChatNames.Names), r.Description)
		}
		w.Flush()

		fmt.Fprintf(out, "\nTotal: %d reminders\n", len(reminders))
		return nil
	},
}

var reminderAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a reminder",
	Example: `  wxadmin reminder add --title 交房租 --day 5 --hour 9 --chats 室友、房东
  wxadmin reminder add --title 生日 --calendar lunar --month 8 --day 15`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := &api.Reminder{CalendarType: api.CalendarSolar, Hour: 8, Enabled: true}
		if err := applyReminderFlags(cmd, r); err != nil {
			return err
		}

		res, err := appInstance.API().CreateReminder(context.Background(), r)
		if err != nil {
			return fmt.Errorf("添加失败: %w", err)
		}
		printResult(cmd, "添加成功", res)
		return nil
	},
}

var reminderUpdateCmd = &cobra.Command{
	Use:               "update <id>",
	Short:             "Update a reminder",
	Long:              "Update a reminder. Only the flags given are changed.",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeReminderIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		r, err := findReminder(ctx, args[0])
		if err != nil {
			return err
		}
		if err := applyReminderFlags(cmd, r); err != nil {
			return err
		}

		res, err := appInstance.API().UpdateReminder(ctx, r.ID, r)
		if err != nil {
			return fmt.Errorf("更新失败: %w", err)
		}
		printResult(cmd, "更新成功", res)
		return nil
	},
}

var reminderDeleteCmd = &cobra.Command{
	Use:               "delete <id>",
	Aliases:           []string{"rm"},
	Short:             "Delete a reminder",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeReminderIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		r, err := findReminder(ctx, args[0])
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("确定要删除提醒 \"%s\" 吗？", r.Title)) {
			return nil
		}

		res, err := appInstance.API().DeleteReminder(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("删除失败: %w", err)
		}
		printResult(cmd, "删除成功", res)
		return nil
	},
}

// findReminder looks a reminder up by id; the service has no single-item read.
func findReminder(ctx context.Context, arg string) (*api.Reminder, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder id: %s", arg)
	}
	reminders, err := appInstance.API().ListReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载失败: %w", err)
	}
	for _, r := range reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("reminder not found: %d", id)
}

// applyReminderFlags copies every flag the user set onto r. A month or day of
// 0 means "every".
func applyReminderFlags(cmd *cobra.Command, r *api.Reminder) error {
	flags := cmd.Flags()

	if flags.Changed("title") {
		r.Title, _ = flags.GetString("title")
	}
	if flags.Changed("desc") {
		r.Description, _ = flags.GetString("desc")
	}
	if flags.Changed("chats") {
		chats, _ := flags.GetString("chats")
		r.ChatNames = api.Encoded(api.SplitChatNames(chats)...)
	}
	if flags.Changed("calendar") {
		cal, _ := flags.GetString("calendar")
		r.CalendarType = api.CalendarType(strings.ToLower(cal))
	}
	if flags.Changed("month") {
		month, _ := flags.GetInt("month")
		r.Month = everyIfZero(month)
	}
	if flags.Changed("day") {
		day, _ := flags.GetInt("day")
		r.Day = everyIfZero(day)
	}
	if flags.Changed("hour") {
		r.Hour, _ = flags.GetInt("hour")
	}
	if flags.Changed("minute") {
		r.Minute, _ = flags.GetInt("minute")
	}
	if flags.Changed("enabled") {
		enabled, _ := flags.GetBool("enabled")
		r.Enabled = api.Flag(enabled)
	}

	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("请输入提醒标题 (--title)")
	}
	return api.ValidateReminder(r)
}

func everyIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "已启用"
	}
	return "已禁用"
}

func addReminderFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "reminder title")
	cmd.Flags().String("desc", "", "description")
	cmd.Flags().String("chats", "", "chat names separated by 、 , ， or spaces")
	cmd.Flags().String("calendar", "solar", "calendar type (solar, lunar)")
	cmd.Flags().Int("month", 0, "month 1-12, 0 for every month")
	cmd.Flags().Int("day", 0, "day 1-31, 0 for every day")
	cmd.Flags().Int("hour", 8, "hour 0-23")
	cmd.Flags().Int("minute", 0, "minute 0-59")
	cmd.Flags().Bool("enabled", true, "whether the reminder is active")

	_ = cmd.RegisterFlagCompletionFunc("calendar", cobra.FixedCompletions(
		[]string{string(api.CalendarSolar), string(api.CalendarLunar)}, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("chats", completeChatNamesForFlag)
}

func init() {
	addReminderFlags(reminderAddCmd)
	addReminderFlags(reminderUpdateCmd)
	reminderDeleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	reminderCmd.AddCommand(reminderListCmd)
	reminderCmd.AddCommand(reminderAddCmd)
	reminderCmd.AddCommand(reminderUpdateCmd)
	reminderCmd.AddCommand(reminderDeleteCmd)

	rootCmd.AddCommand(reminderCmd)
}
