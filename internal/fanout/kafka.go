package fanout

import (
	"context"
	"time"

	"papertrader/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards hub messages to a Kafka topic.
type KafkaPublisher struct {
	writer  messageWriter
	key     []byte
	timeout time.Duration
	logger  *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	logger.Info("kafka publisher created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &KafkaPublisher{
		writer:  writer,
		key:     []byte("prices"),
		timeout: timeout,
		logger:  logger,
	}
}

// Run writes every message from msgs until the channel closes or ctx is done.
// Write failures are logged and the message is skipped.
func (p *KafkaPublisher) Run(ctx context.Context, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-msgs:
			if !ok {
				return
			}
			p.write(ctx, b)
		}
	}
}

func (p *KafkaPublisher) write(ctx context.Context, b []byte) {
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.writer.WriteMessages(wctx, kafka.Message{
		Key:   p.key,
		Value: b,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Warn("failed to publish snapshot to kafka", zap.Error(err))
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
