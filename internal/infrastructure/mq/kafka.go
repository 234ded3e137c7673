package mq

import (
	"fmt"
	"log"

	"skillexchange/internal/config"

	"github.com/IBM/sarama"
)

// Publisher sends one keyed message to a topic.
type Publisher interface {
	Publish(topic, key, value string) error
	Close() error
}

// KafkaPublisher wraps a sarama sync producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaPublisher builds a producer that waits for all in-sync replicas.
func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	kafkaConfig.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	log.Printf("[Kafka] producer ready brokers=%v", cfg.Brokers)
	return NewPublisher(producer), nil
}

// NewPublisher wraps an existing producer.
func NewPublisher(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(topic, key, value string) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	})
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
