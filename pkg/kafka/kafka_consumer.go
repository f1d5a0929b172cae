package kafka

import (
	"context"
	"time"

	"backflow/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ConsumerService 消费指定主题，消息写入返回的通道
type ConsumerService interface {
	Consume(ctx context.Context, topic string, groupID string) (<-chan kafka.Message, error)
	Close()
}

type kafkaConsumer struct {
	brokerURL string
}

func NewKafkaConsumer(brokerURL string) ConsumerService {
	return &kafkaConsumer{
		brokerURL: brokerURL,
	}
}

func (c *kafkaConsumer) Consume(ctx context.Context, topic string, groupID string) (<-chan kafka.Message, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{c.brokerURL},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset, // 新消费组从头回放历史结果
		CommitInterval: time.Second,
		MaxAttempts:    3,
	})
	outputCh := make(chan kafka.Message, 64)

	go func() {
		defer close(outputCh)
		defer r.Close()
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				logger.Errorf("kafka read error on topic %s: %v", topic, err)
				time.Sleep(time.Second)
				continue
			}
			select {
			case outputCh <- m:
			case <-ctx.Done():
				return
			}
		}
		logger.Infof("kafka consumer for topic %s finished", topic)
	}()

	return outputCh, nil
}

func (c *kafkaConsumer) Close() {
	logger.Info("kafka consumer service closing")
}
