package mail

import (
	"errors"

	"backflow/conf"

	gomail "github.com/go-mail/mail"
)

// Mailer SMTP 发信
type Mailer struct {
	dialer *gomail.Dialer
	sender string
	to     []string
}

func NewMailer(cfg conf.EmailConfig) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	sender := cfg.Sender
	if sender == "" {
		sender = cfg.Username
	}
	return &Mailer{dialer: d, sender: sender, to: cfg.To}
}

// Enabled 未配置 SMTP 或收件人时不发送
func (m *Mailer) Enabled() bool {
	return m.dialer.Host != "" && len(m.to) > 0
}

// Send 纯文本邮件
func (m *Mailer) Send(subject, body string) error {
	if !m.Enabled() {
		return errors.New("mail not configured")
	}
	return m.dialer.DialAndSend(NewMessage(m.sender, m.to, subject, body))
}

func NewMessage(sender string, to []string, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", sender)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}
