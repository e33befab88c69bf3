// pkg/kafka/producer.go
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/feedgate/trade-connector/pkg/backoff"
	"github.com/feedgate/trade-connector/pkg/logger"
)

// Config хранит настройки продьюсера.
type Config struct {
	Brokers        []string       `mapstructure:"brokers"`
	RequiredAcks   string         `mapstructure:"acks"`        // all | leader | none
	Compression    string         `mapstructure:"compression"` // none | gzip | snappy | lz4 | zstd
	Timeout        time.Duration  `mapstructure:"timeout"`     // таймаут одной публикации
	FlushFrequency time.Duration  `mapstructure:"flush_frequency"`
	FlushMessages  int            `mapstructure:"flush_messages"`
	Backoff        backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka: brokers are required")
	}
	return nil
}

// buildSaramaConfig транслирует Config в *sarama.Config.
// Идемпотентность включается при acks=all: retries не приводят
// к дубликатам со стороны продьюсера.
func buildSaramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Timeout = cfg.Timeout
	sc.Producer.Retry.Max = 10
	sc.Producer.Flush.Frequency = cfg.FlushFrequency
	sc.Producer.Flush.Messages = cfg.FlushMessages

	switch strings.ToLower(cfg.RequiredAcks) {
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
		sc.Producer.Idempotent = true
		sc.Net.MaxOpenRequests = 1
	case "leader":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("kafka: invalid acks %q", cfg.RequiredAcks)
	}

	switch strings.ToLower(cfg.Compression) {
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, fmt.Errorf("kafka: invalid compression %q", cfg.Compression)
	}

	return sc, nil
}

// kafkaProducer — приватная реализация Producer поверх sarama.SyncProducer.
type kafkaProducer struct {
	client     sarama.Client
	prod       sarama.SyncProducer
	logger     *logger.Logger
	backoffCfg backoff.Config
}

// NewProducer создаёт синхронный продьюсер с подключением через backoff.
func NewProducer(ctx context.Context, cfg Config, log *logger.Logger) (Producer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	log = log.Named("kafka")

	var client sarama.Client
	err = backoff.Execute(ctx, cfg.Backoff, log, func(ctx context.Context) error {
		var cErr error
		client, cErr = sarama.NewClient(cfg.Brokers, sc)
		return cErr
	})
	if err != nil {
		return nil, fmt.Errorf("kafka: connect: %w", err)
	}

	prod, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}

	log.Sugar().Infow("kafka: producer ready", "brokers", cfg.Brokers)
	return &kafkaProducer{
		client:     client,
		prod:       prod,
		logger:     log,
		backoffCfg: cfg.Backoff,
	}, nil
}

// Publish отправляет сообщение и ждёт подтверждения брокера.
// Временные ошибки ретраятся через backoff; итоговая ошибка фатальна для вызывающего.
func (p *kafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}
	return backoff.Execute(ctx, p.backoffCfg, p.logger, func(ctx context.Context) error {
		_, _, err := p.prod.SendMessage(msg)
		return err
	})
}

// Ping обновляет метаданные и тем самым проверяет доступность кластера.
func (p *kafkaProducer) Ping(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("kafka: client is not initialized")
	}
	return p.client.RefreshMetadata()
}

func (p *kafkaProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}
	if p.client != nil && !p.client.Closed() {
		return p.client.Close()
	}
	return nil
}
