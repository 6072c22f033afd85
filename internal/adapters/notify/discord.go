package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/roundbot/internal/adapters/httpclient"
	"github.com/alejandrodnm/roundbot/internal/domain"
)

// Discord limita los webhooks a 30 mensajes/min por canal; usamos la mitad.
const discordPerMinute = 15

// maxContentLen es el límite de Discord para el campo content.
const maxContentLen = 2000

// Discord implementa ports.Notifier enviando mensajes a un webhook.
type Discord struct {
	http       *httpclient.Client
	webhookURL string
	username   string
	avatarURL  string
}

// NewDiscord crea un notificador para webhookURL. username/avatarURL se usan
// cuando la notificación no trae los suyos.
func NewDiscord(webhookURL, username, avatarURL string, opts ...httpclient.Option) (*Discord, error) {
	if webhookURL == "" {
		return nil, errors.New("notify.NewDiscord: webhook URL is required")
	}
	opts = append([]httpclient.Option{httpclient.WithTimeout(10 * time.Second)}, opts...)
	return &Discord{
		http:       httpclient.New(discordPerMinute, 5, opts...),
		webhookURL: webhookURL,
		username:   username,
		avatarURL:  avatarURL,
	}, nil
}

type webhookPayload struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Notify envía el mensaje. Discord responde 204 sin body.
func (d *Discord) Notify(ctx context.Context, n domain.Notification) error {
	if n.Content == "" {
		return nil
	}

	p := webhookPayload{
		Content:   truncateContent(n.Content),
		Username:  n.Username,
		AvatarURL: n.AvatarURL,
	}
	if p.Username == "" {
		p.Username = d.username
	}
	if p.AvatarURL == "" {
		p.AvatarURL = d.avatarURL
	}

	if err := d.http.PostJSON(ctx, d.webhookURL, p, nil); err != nil {
		return fmt.Errorf("notify.Discord: %w", err)
	}
	return nil
}

func truncateContent(s string) string {
	r := []rune(s)
	if len(r) <= maxContentLen {
		return s
	}
	return string(r[:maxContentLen-3]) + "..."
}
