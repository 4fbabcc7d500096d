package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/maitri/internal/config"
	"github.com/hammamikhairi/maitri/internal/display"
	"github.com/hammamikhairi/maitri/internal/domain"
)

// errReplyFailed marks an ask whose reply resolved to an error. The
// error text has already been printed.
var errReplyFailed = errors.New("reply failed")

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "maitri",
		Short:         "A conversational companion for the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultDir()+"/config.toml)")
	root.PersistentFlags().String("backend", config.BackendGemini, "completion backend: gemini, vertex, openai or echo")
	root.PersistentFlags().String("model", "", "model name")
	root.PersistentFlags().Int("window", 0, "prior messages sent with each request")
	root.PersistentFlags().Duration("reply-timeout", 0, "give up on a reply after this long (0 waits forever)")
	root.PersistentFlags().String("log-level", "normal", "log level: off, normal or verbose")
	root.PersistentFlags().String("log-file", "", `file to write logs to ("stderr" logs to the console)`)
	root.Flags().Bool("speech", false, "enable voice input via local Whisper STT")
	root.Flags().String("whisper-model", "", "path to the Whisper GGML model file")
	root.Flags().Bool("voice", false, "read replies aloud via Azure TTS")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat window (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, cfgFile)
		},
	}
	chat.Flags().AddFlagSet(root.Flags())

	ask := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, cfgFile, strings.Join(args, " "))
		},
	}

	printConfig := &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgFile)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), display.RenderBanner("maitri "+version))
		},
	}

	root.AddCommand(chat, ask, printConfig, versionCmd)
	return root
}

func loadConfig(cmd *cobra.Command, cfgFile string) (*config.Config, error) {
	return config.Load(config.LoadOptions{File: cfgFile, Flags: cmd.Flags()})
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runChat(cmd *cobra.Command, cfgFile string) error {
	cfg, err := loadConfig(cmd, cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{interactive: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ui := display.NewUI(a.session, a.log.With("display"))
	return ui.Run(ctx)
}

func runAsk(cmd *cobra.Command, cfgFile, text string) error {
	cfg, err := loadConfig(cmd, cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	return ask(ctx, a, text, cmd.OutOrStdout())
}

// ask submits text and prints the resolved reply.
func ask(ctx context.Context, a *app, text string, out io.Writer) error {
	done, err := a.session.Submit(ctx, text)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	select {
	case msg := <-done:
		fmt.Fprintln(out, msg.Text)
		if msg.Status == domain.StatusError {
			return errReplyFailed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
