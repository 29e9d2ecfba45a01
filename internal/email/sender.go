package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para correos de verificación y bienvenida.
type Sender interface {
	SendVerification(ctx context.Context, toEmail, username, token string) error
	SendWelcome(ctx context.Context, toEmail, username string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerification(_ context.Context, _ string, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendWelcome(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
