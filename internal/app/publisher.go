package app

import (
	"context"
	"fmt"

	"postbot/internal/event"
	kit "postbot/internal/transport"
)

// telegramPublisher satisfies the scheduler's Publisher capability by
// resolving the stored destination string into a chat target.
type telegramPublisher struct {
	ad kit.Adapter
}

func newTelegramPublisher(ad kit.Adapter) *telegramPublisher {
	return &telegramPublisher{ad: ad}
}

func (p *telegramPublisher) Publish(ctx context.Context, destination, text string) error {
	chatID, threadID, err := event.ParseDestination(destination)
	if err != nil {
		return fmt.Errorf("bad destination %q: %w", destination, err)
	}
	_, err = p.ad.SendText(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, text, &kit.SendOptions{
		DisablePreview: false,
	})
	return err
}
