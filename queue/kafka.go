package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"expenses/logger"
)

// MessageReader is the part of *kafka.Reader KafkaSource needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource reads enveloped messages from Kafka topics. It keeps one
// consumer-group reader per topic so consecutive reads continue where the
// previous one stopped, the way an auto-acked queue fetch does.
type KafkaSource struct {
	brokers []string
	groupID string
	wait    time.Duration

	mu        sync.Mutex
	readers   map[string]MessageReader
	newReader func(topic string) MessageReader
}

var _ Reader = (*KafkaSource)(nil)

// NewKafkaSource creates a source for brokers. wait bounds a single read;
// a read that sees no record within wait reports "no message".
func NewKafkaSource(brokers []string, groupID string, wait time.Duration) *KafkaSource {
	if wait <= 0 {
		wait = 200 * time.Millisecond
	}
	s := &KafkaSource{brokers: brokers, groupID: groupID, wait: wait, readers: map[string]MessageReader{}}
	s.newReader = func(topic string) MessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  s.brokers,
			GroupID:  s.groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
			MaxWait:  s.wait,
		})
	}
	return s
}

func (s *KafkaSource) reader(topic string) MessageReader {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.readers[topic]
	if !ok {
		r = s.newReader(topic)
		s.readers[topic] = r
		logger.Debug("kafka reader opened", logger.FieldKV("topic", topic), logger.FieldKV("group", s.groupID))
	}
	return r
}

// ReadRawMessage reads and unwraps one record from topic.
func (s *KafkaSource) ReadRawMessage(ctx context.Context, topic string) (string, bool, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()
	m, err := s.reader(topic).ReadMessage(readCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kafka read %s: %w", topic, err)
	}
	logger.Debug("kafka message read", logger.FieldKV("topic", topic), logger.FieldKV("partition", m.Partition), logger.FieldKV("offset", m.Offset))
	return Unwrap(m.Value)
}

// Close closes every reader opened so far.
func (s *KafkaSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for topic, r := range s.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader %s: %w", topic, err))
		}
		delete(s.readers, topic)
	}
	return errors.Join(errs...)
}
