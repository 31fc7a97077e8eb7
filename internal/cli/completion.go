package cli

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"wxadmin/internal/api"
	"wxadmin/internal/config"
)

// ensureApp lazily initializes appInstance for shell completion.
// Cobra may invoke ValidArgsFunction without running PersistentPreRunE.
func ensureApp(cmd *cobra.Command) error {
	return initApp(cmd)
}

func filterPrefix(candidates []string, toComplete string) []string {
	var completions []string
	prefix := strings.ToLower(toComplete)
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), prefix) {
			completions = append(completions, c)
		}
	}
	return completions
}

// completeReminderIDs completes reminder ids, described by their titles.
func completeReminderIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	reminders, err := appInstance.API().ListReminders(context.Background())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var completions []string
	for _, r := range reminders {
		id := strconv.FormatInt(r.ID, 10)
		if strings.HasPrefix(id, toComplete) {
			completions = append(completions, id+"\t"+r.Title)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

func chatNames() ([]string, error) {
	chats, err := appInstance.API().ListChatProcessors(context.Background())
	if err != nil {
		return nil, err
	}
	names := make([]string, len(chats))
	for i, c := range chats {
		names[i] = c.ChatName
	}
	return names, nil
}

// completeChatNames provides shell completion for a chat name argument.
func completeChatNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	names, err := chatNames()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeChatNamesForFlag completes the last name of a --chats list.
func completeChatNamesForFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	names, err := chatNames()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	// Complete only the name after the last separator.
	cut := strings.LastIndexFunc(toComplete, func(r rune) bool {
		return r == '、' || r == ',' || r == '，' || unicode.IsSpace(r)
	})
	prefix, last := "", toComplete
	if cut >= 0 {
		_, size := utf8.DecodeRuneInString(toComplete[cut:])
		prefix, last = toComplete[:cut+size], toComplete[cut+size:]
	}
	done := api.SplitChatNames(prefix)

	var completions []string
	for _, name := range filterPrefix(names, last) {
		if !slices.Contains(done, name) {
			completions = append(completions, prefix+name)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// completeChatThenProcessors completes a chat name first, then processor ids
// not yet given.
func completeChatThenProcessors(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeChatNames(cmd, args, toComplete)
	}
	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	processors, err := appInstance.API().ListProcessors(context.Background())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var completions []string
	for _, p := range processors {
		if slices.Contains(args[1:], p.ID) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(p.ID), strings.ToLower(toComplete)) {
			completions = append(completions, p.ID+"\t"+p.Label())
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeSettingKeys completes the key, then the choices of a choice setting.
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		var completions []string
		for _, d := range config.SettingDefs {
			if strings.HasPrefix(d.Key, toComplete) {
				completions = append(completions, d.Key+"\t"+d.Label)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	case 1:
		if d, ok := config.LookupSetting(args[0]); ok && d.Kind == config.SettingChoice {
			return filterPrefix(d.Choices, toComplete), cobra.ShellCompDirectiveNoFileComp
		}
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
