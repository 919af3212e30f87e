package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"taskpilot/app/pkg/types"
)

type CLIChannel struct {
	id     string
	userID string
}

func NewCLIChannel(userID string) *CLIChannel {
	if strings.TrimSpace(userID) == "" {
		userID = "local_user"
	}
	return &CLIChannel{id: "cli", userID: userID}
}

func (c *CLIChannel) ID() string {
	return c.id
}

func (c *CLIChannel) Start(ctx context.Context, handler func(types.Message)) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(">> TaskPilot CLI started. Type '/help' for commands, 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				fmt.Println("Exiting CLI loop...")
				return nil
			}

			msgID := fmt.Sprintf("cli-%d", time.Now().UnixNano())
			handler(types.Message{
				ID:        msgID,
				Content:   text,
				Role:      types.MessageRoleUser,
				ChannelID: c.id,
				UserID:    c.userID,
				RequestID: msgID,
				Meta: map[string]interface{}{
					"user_id": c.userID,
				},
			})
		}
	}
}

func (c *CLIChannel) Send(ctx context.Context, msg types.Message) error {
	fmt.Printf("[TaskPilot]: %s\n", msg.Content)
	return nil
}
