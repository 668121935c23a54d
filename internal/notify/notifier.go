package notify

import (
	"context"
	"fmt"

	"proxy-bot/internal/db"
)

// Notification channels, matching the channel flags on ExpirationAlert.
const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"
	ChannelSMS   = "sms"
)

// Service routes a notification to the transport behind a channel. A nil
// transport means the channel is not configured in this deployment.
type Service struct {
	email    *EmailSender
	telegram *TelegramSender
	sms      *SMSSender
}

func NewService(email *EmailSender, telegram *TelegramSender, sms *SMSSender) *Service {
	return &Service{
		email:    email,
		telegram: telegram,
		sms:      sms,
	}
}

func (s *Service) Send(ctx context.Context, channel string, user db.User, subject, body string) error {
	switch channel {
	case ChannelEmail:
		if s.email == nil {
			return fmt.Errorf("email channel is not configured")
		}
		if user.Email == "" {
			return fmt.Errorf("user %d has no email address", user.TgID)
		}
		return s.email.Send(ctx, user.Email, subject, body)

	case ChannelInApp:
		if s.telegram == nil {
			return fmt.Errorf("in-app channel is not configured")
		}
		return s.telegram.Send(ctx, user.TgID, body)

	case ChannelSMS:
		if s.sms == nil {
			return fmt.Errorf("sms channel is not configured")
		}
		if user.Phone == "" {
			return fmt.Errorf("user %d has no phone number", user.TgID)
		}
		return s.sms.Send(ctx, user.Phone, body)

	default:
		return fmt.Errorf("unknown notification channel: %s", channel)
	}
}
