// hrchat is a terminal client for the HR resource chatbot.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/chatbot"
	"github.com/ashureev/hr-resource-chat/internal/conversation"
	"github.com/ashureev/hr-resource-chat/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL          string
		timeout          time.Duration
		layout           string
		maxResponseBytes int64
		logFile          string
	)

	cmd := &cobra.Command{
		Use:   "hrchat",
		Short: "Chat with the HR resource chatbot from the terminal",
		Long: `hrchat sends each query to <url>/chat and shows the conversation.

Enter sends the query, ctrl+x cancels a pending one, esc or ctrl+c quits.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := newLogger(logFile)
			if err != nil {
				return err
			}
			defer closeLog()

			client, err := chatbot.NewClient(chatbot.Config{
				BaseURL:          baseURL,
				Timeout:          timeout,
				MaxResponseBytes: maxResponseBytes,
			}, logger)
			if err != nil {
				return err
			}

			ctrl := conversation.New(conversation.Options{
				Asker:           client,
				TimestampLayout: layout,
				Logger:          logger,
			})
			defer ctrl.Close()

			logger.Info("Starting terminal chat", "endpoint", client.Endpoint())
			if _, err := tea.NewProgram(tui.New(ctrl), tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("run terminal ui: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", os.Getenv("CHATBOT_URL"), "chatbot base URL (env CHATBOT_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-query timeout, 0 for none")
	cmd.Flags().StringVar(&layout, "layout", conversation.DefaultTimestampLayout, "Go time layout for message timestamps")
	cmd.Flags().Int64Var(&maxResponseBytes, "max-response-bytes", chatbot.DefaultMaxResponseBytes, "largest chatbot response accepted")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write JSON logs to this file")

	return cmd
}

// newLogger keeps logs off the terminal the UI is drawing on.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, nil)), func() { _ = f.Close() }, nil
}
