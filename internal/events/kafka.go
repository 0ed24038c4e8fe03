package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ParseBrokers splits a comma separated broker list, dropping blanks
func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Kafka publishes events keyed by order id so one order's events stay ordered
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (k *Kafka) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// FromConfig returns a Kafka publisher when brokers are configured and Nop otherwise
func FromConfig(brokersCSV, topic string) Publisher {
	brokers := ParseBrokers(brokersCSV)
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafka(brokers, topic)
}
