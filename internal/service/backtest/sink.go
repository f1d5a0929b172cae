package backtest

import (
	"context"

	"backflow/internal/model"
	"backflow/pkg/kafka"
)

// Mailer 发送纯文本邮件
type Mailer interface {
	Enabled() bool
	Send(subject, body string) error
}

// MailNotifier 把运行报告发到配置的收件人
type MailNotifier struct {
	mailer Mailer
}

func NewMailNotifier(m Mailer) *MailNotifier {
	return &MailNotifier{mailer: m}
}

func (n *MailNotifier) Notify(_ context.Context, s *model.RunSummary) error {
	if !n.mailer.Enabled() {
		return nil
	}
	return n.mailer.Send(Subject(s), RenderText(s))
}

// Messenger 发送带标题的文本消息
type Messenger interface {
	Enabled() bool
	Send(ctx context.Context, title, body string) error
}

// ChatNotifier 把运行报告推到即时消息（Telegram）
type ChatNotifier struct {
	messenger Messenger
}

func NewChatNotifier(m Messenger) *ChatNotifier {
	return &ChatNotifier{messenger: m}
}

func (n *ChatNotifier) Notify(ctx context.Context, s *model.RunSummary) error {
	if !n.messenger.Enabled() {
		return nil
	}
	return n.messenger.Send(ctx, Subject(s), RenderText(s))
}

// KafkaPublisher 以策略类型为 key 广播 RunEvent
type KafkaPublisher struct {
	producer kafka.ProducerService
}

func NewKafkaPublisher(p kafka.ProducerService) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

func (p *KafkaPublisher) Publish(ctx context.Context, s *model.RunSummary) error {
	return p.producer.Produce(ctx, []byte(s.StrategyType), model.NewRunEvent(s))
}
