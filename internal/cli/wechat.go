package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"wxadmin/internal/events"
	"wxadmin/internal/qrcode"
	"wxadmin/internal/wechat"
)

var wechatCmd = &cobra.Command{
	Use:     "wechat",
	Aliases: []string{"wx"},
	Short:   "Check and recover the WeChat connection",
}

var wechatStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the WeChat connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := appInstance.NewController()
		if err != nil {
			return err
		}
		defer ctrl.Stop()

		state, err := ctrl.CheckStatus(cmd.Context())
		printState(cmd.OutOrStdout(), state)
		if err != nil {
			return fmt.Errorf("%s: %w", ctrl.Snapshot().Notice, err)
		}
		return nil
	},
}

var wechatLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Ask the service to log WeChat in",
	Long: `Send the login command. The service needs about 30 seconds to log in;
with --wait the status is checked again after the re-check delay and the
result printed. If login fails, use "wxadmin wechat qrcode".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		wait, _ := cmd.Flags().GetBool("wait")

		ctrl, err := appInstance.NewController()
		if err != nil {
			return err
		}
		defer ctrl.Stop()

		sub := ctrl.SubscribeTo(events.StateChanged)
		defer ctrl.Unsubscribe(sub)
		if err := ctrl.AttemptLogin(cmd.Context()); err != nil {
			printState(out, ctrl.State())
			return fmt.Errorf("%s: %w", ctrl.Snapshot().Notice, err)
		}
		fmt.Fprintf(out, "✓ %s\n", wechat.NoticeLoginSent)
		if !wait {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := appInstance.Config()
		deadline := cfg.LoginRecheckDelay + time.Duration(cfg.MaxRetries+1)*cfg.RequestTimeout + 5*time.Second
		fmt.Fprintf(out, "Waiting %s for the re-check...\n", cfg.LoginRecheckDelay)

		state, err := waitForRecheck(ctx, sub, deadline)
		if err != nil {
			return err
		}
		printState(out, state)
		return nil
	},
}

// waitForRecheck blocks until the post-login re-check changes the state. sub
// carries StateChanged events only.
func waitForRecheck(ctx context.Context, sub <-chan events.Event, timeout time.Duration) (wechat.State, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return "", errors.New("controller stopped")
			}
			if ev.Data == wechat.SourceRecheck {
				return wechat.State(ev.NewState), nil
			}
		case <-timer.C:
			return "", fmt.Errorf("no re-check result after %s", timeout)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

var wechatQrCodeCmd = &cobra.Command{
	Use:   "qrcode",
	Short: "Fetch a login QR code",
	Long: `Fetch a login QR code and draw it in the terminal, or save the image with
--out. Scan it with the WeChat app to log in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		outFile, _ := cmd.Flags().GetString("out")
		invert, _ := cmd.Flags().GetBool("invert")

		ctrl, err := appInstance.NewController()
		if err != nil {
			return err
		}
		defer ctrl.Stop()

		if err := ctrl.RequestQrCode(cmd.Context()); err != nil {
			return fmt.Errorf("%s: %w", wechat.NoticeQrCodeFailed, err)
		}
		payload := ctrl.Snapshot().QrCode

		if outFile != "" {
			if err := qrcode.Save(payload, outFile); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ QR code saved to %s\n", outFile)
			return nil
		}

		art, err := qrcode.RenderPayload(payload, qrcode.RenderOptions{
			MaxWidth: qrcode.TerminalWidth(os.Stdout, 80),
			Invert:   invert,
		})
		if err != nil {
			if errors.Is(err, qrcode.ErrTooWide) {
				return fmt.Errorf("%w; widen the terminal or use --out", err)
			}
			return err
		}
		fmt.Fprintln(out, art)
		fmt.Fprintln(out, wechat.QrCodeRequired.Display().Description)
		return nil
	},
}

var wechatHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded connection state changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		out := cmd.OutOrStdout()

		if clearAll, _ := cmd.Flags().GetBool("clear"); clearAll {
			if err := appInstance.Storage.ClearStatusHistory(ctx); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(out, "✓ History cleared")
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := appInstance.Storage.GetStatusHistory(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "No history recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tFROM\tTO\tSOURCE\tMESSAGE")
		fmt.Fprintln(w, "----\t----\t--\t------\t-------")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
				e.PrevState, e.State, e.Source, e.Message)
		}
		w.Flush()
		return nil
	},
}

var wechatWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the status and print every change until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		ctrl, err := appInstance.NewController()
		if err != nil {
			return err
		}
		defer ctrl.Stop()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub := ctrl.Subscribe()
		errCh := make(chan error, 1)
		go func() { errCh <- ctrl.Start(ctx) }()

		fmt.Fprintf(out, "Polling every %s, Ctrl+C to stop.\n", appInstance.Config().PollInterval)
		for {
			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case ev, ok := <-sub:
				if !ok {
					return nil
				}
				printEvent(out, ev)
			case <-ctx.Done():
				return nil
			}
		}
	},
}

func printState(w io.Writer, state wechat.State) {
	d := state.Display()
	fmt.Fprintf(w, "WeChat: %s (%s)\n", d.Label, d.Description)
}

func printEvent(w io.Writer, ev events.Event) {
	ts := ev.Timestamp.Local().Format("15:04:05")
	switch ev.Type {
	case events.StateChanged:
		fmt.Fprintf(w, "[%s] %s → %s (%v)\n", ts,
			wechat.ParseState(ev.OldState).Display().Label,
			wechat.ParseState(ev.NewState).Display().Label,
			ev.Data)
	case events.NoticeRaised:
		fmt.Fprintf(w, "[%s] %s\n", ts, ev.Notice)
	}
}

func init() {
	wechatLoginCmd.Flags().Bool("wait", false, "wait for the post-login re-check and print the result")
	wechatQrCodeCmd.Flags().StringP("out", "o", "", "write the QR image to this file instead of drawing it")
	wechatQrCodeCmd.Flags().Bool("invert", false, "invert colours for light-on-dark terminals")
	wechatHistoryCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	wechatHistoryCmd.Flags().Bool("clear", false, "delete the recorded history")

	wechatCmd.AddCommand(wechatStatusCmd)
	wechatCmd.AddCommand(wechatLoginCmd)
	wechatCmd.AddCommand(wechatQrCodeCmd)
	wechatCmd.AddCommand(wechatHistoryCmd)
	wechatCmd.AddCommand(wechatWatchCmd)

	rootCmd.AddCommand(wechatCmd)
}
