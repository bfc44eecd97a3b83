package events

import (
	"time"

	"github.com/segmentio/kafka-go"
)

var NewKafkaPublisherWithWriter = newKafkaPublisherWithWriter

func WriterBatchTimeout(p *KafkaPublisher) time.Duration {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.BatchTimeout
	}
	return 0
}
