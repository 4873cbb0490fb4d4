package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/signalry/signalry/internal/model"
)

const telegramAPIBase = "https://api.telegram.org/bot"

// TelegramConnector receives group messages through long polling on the
// Bot API. It runs as a push connector: Start blocks and streams signals
// until the context is canceled.
type TelegramConnector struct {
	token   string
	apiBase string
	client  *http.Client
	offset  int64
}

// NewTelegramConnector creates a telegram connector. The bot token comes
// from the named environment variable.
func NewTelegramConnector(tokenEnv string) (*TelegramConnector, error) {
	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil, fmt.Errorf("telegram connector: %s is not set", tokenEnv)
	}
	return &TelegramConnector{
		token:   token,
		apiBase: telegramAPIBase,
		client:  &http.Client{Timeout: 45 * time.Second},
	}, nil
}

// Name implements PushConnector.
func (t *TelegramConnector) Name() string { return "telegram" }

// Start long-polls getUpdates and forwards text messages as signals.
func (t *TelegramConnector) Start(ctx context.Context, out chan<- model.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// transient; back off and retry
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, sig := range updates {
			select {
			case out <- sig:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (t *TelegramConnector) getUpdates(ctx context.Context) ([]model.Signal, error) {
	url := fmt.Sprintf("%s%s/getUpdates?timeout=30&offset=%d", t.apiBase, t.token, t.offset)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram getUpdates: HTTP %d", resp.StatusCode)
	}

	var result struct {
		OK     bool `json:"ok"`
		Result []struct {
			UpdateID int64 `json:"update_id"`
			Message  struct {
				MessageID int64  `json:"message_id"`
				Text      string `json:"text"`
				Date      int64  `json:"date"`
				Chat      struct {
					ID int64 `json:"id"`
				} `json:"chat"`
				From struct {
					Username  string `json:"username"`
					FirstName string `json:"first_name"`
				} `json:"from"`
				ReplyToMessage *struct {
					MessageID int64 `json:"message_id"`
				} `json:"reply_to_message"`
			} `json:"message"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram getUpdates: not ok")
	}

	var signals []model.Signal
	for _, u := range result.Result {
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}
		msg := u.Message
		if msg.Text == "" {
			continue
		}

		actor := msg.From.Username
		if actor == "" {
			actor = msg.From.FirstName
		}

		var replyTo *string
		if msg.ReplyToMessage != nil {
			v := fmt.Sprintf("%d", msg.ReplyToMessage.MessageID)
			replyTo = &v
		}

		signals = append(signals, model.Signal{
			ID:        model.NewSignalID(),
			Source:    t.Name(),
			Actor:     actor,
			Text:      msg.Text,
			Timestamp: time.Unix(msg.Date, 0).UTC(),
			// Message IDs are only unique per chat, so the dedup key
			// carries both.
			SourceID:  fmt.Sprintf("tg-%d-%d", msg.Chat.ID, msg.MessageID),
			ReplyTo:   replyTo,
		})
	}
	return signals, nil
}
