package event

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

// KafkaSink publishes lifecycle events to a kafka topic. Delivery reports
// are drained in the background; a failed delivery is logged, never
// surfaced to the pipeline.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
}

var _ Sink = (*KafkaSink)(nil)

func NewKafkaSink(brokers, topic string) (*KafkaSink, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return nil, err
	}

	sink := &KafkaSink{producer: producer, topic: topic}

	go func() {
		for e := range producer.Events() {
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				logrus.Errorf("event delivery failed: %v", m.TopicPartition.Error)
			}
		}
	}()

	return sink, nil
}

func (k *KafkaSink) Emit(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Target),
		Value:          payload,
	}, nil)
}

func (k *KafkaSink) Close() {
	k.producer.Flush(5000)
	k.producer.Close()
}
