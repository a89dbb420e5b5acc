// Package gateway holds what the chat transports share.
package gateway

import (
	"context"

	"expensebot/internal/bot"
)

// Handler is the transport-independent bot core.
type Handler interface {
	HandleMessage(ctx context.Context, msg bot.Message) bot.Reply
	HandleSelection(ctx context.Context, sel bot.Selection) bot.Reply
}

// Rows splits choices into rows of at most perRow entries.
func Rows(choices []bot.Choice, perRow int) [][]bot.Choice {
	if perRow < 1 {
		perRow = 1
	}
	rows := make([][]bot.Choice, 0, (len(choices)+perRow-1)/perRow)
	for len(choices) > 0 {
		n := min(perRow, len(choices))
		rows = append(rows, choices[:n])
		choices = choices[n:]
	}
	return rows
}
