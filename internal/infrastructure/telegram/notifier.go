package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"TdnetDownloader/internal/ports"
)

// Notifier sends run digests to a Telegram chat via bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *resty.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. apiBase defaults to
// the public bot API.
func NewNotifier(apiBase, botToken, chatID string) *Notifier {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &Notifier{
		apiBase:  strings.TrimSuffix(apiBase, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   resty.New().SetTimeout(5 * time.Second),
	}
}

// PublishDigest posts a plain text message to Telegram.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	res, err := n.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": n.chatID,
			"text":    digest,
		}).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if !res.IsSuccess() {
		return fmt.Errorf("telegram error: %s", res.Status())
	}

	return nil
}
