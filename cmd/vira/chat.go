package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/core"
	"github.com/oceanbase/vira-go/pkg/llm"
)

var chatUserID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the terminal chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatUserID, "user", "u", "", "User ID (default: $VIRA_USER_ID or cli_user)")
}

// exitWords end the chat loop.
var exitWords = map[string]bool{"exit": true, "quit": true, "çıkış": true}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	assistant, err := core.NewAssistant(config, core.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := assistant.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	userID := chatUserID
	if userID == "" {
		userID = os.Getenv("VIRA_USER_ID")
	}
	if userID == "" {
		userID = "cli_user"
	}
	return chatLoop(ctx, assistant, logger, userID, uuid.NewString(), in, out)
}

// chatter is the part of core.Assistant the loop needs.
type chatter interface {
	Chat(ctx context.Context, userID, message string, opts ...core.ChatOption) (*core.ChatResult, error)
}

func chatLoop(ctx context.Context, assistant chatter, log *zap.Logger, userID, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out, "Vira CLI")
	fmt.Fprintln(out, "Çıkmak için 'exit' veya 'quit' yazın.")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	var history []llm.Message
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nSen: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if exitWords[strings.ToLower(text)] {
			fmt.Fprintln(out, "\nGörüşmek üzere!")
			return nil
		}
		if text == "" {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		result, err := assistant.Chat(ctx, userID, text, core.WithSessionID(sessionID), core.WithHistory(history))
		if err != nil {
			log.Error("chat turn failed", zap.Error(err))
		}
		if result == nil {
			fmt.Fprintf(out, "\nVira: Üzgünüm, bir hata oluştu: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\nVira: %s\n", result.Response)

		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: text},
			llm.Message{Role: llm.RoleAssistant, Content: result.Response},
		)
	}
}
