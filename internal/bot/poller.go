package bot

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const pollRetryDelay = 3 * time.Second

// Poll runs the long-polling loop until the context is cancelled. It is
// the delivery mode for local runs; production uses the webhook.
func (b *Bot) Poll(ctx context.Context, timeoutSec int) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, errPoll := b.tg.GetUpdates(ctx, offset, timeoutSec, []string{"message", "callback_query"})
		if errPoll != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(errPoll).Warn("bot: poll failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}
