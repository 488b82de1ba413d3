// Package mailer はSMTP経由のメール送信を提供する。
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Sender はメール送信のインターフェース。
type Sender interface {
	// Send は指定の宛先にプレーンテキストのメールを送信する。
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig はSMTPクライアントの設定。
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender はgo-mailを使用したメール送信実装。
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender はSMTPSenderを生成する。
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.User),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send は指定の宛先にプレーンテキストのメールを送信する。
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	return nil
}

// NopSender はSMTP未設定時に使用する送信実装。
// 送信内容をログに記録するのみで、実際の送信は行わない。
type NopSender struct{}

// Send はログ記録のみ行う。
func (NopSender) Send(_ context.Context, to, subject, _ string) error {
	slog.Info("mail sending skipped (SMTP not configured)",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

// compile-time interface checks
var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = NopSender{}
)
