package sink

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"sacctcollapse/collapse"
	"sacctcollapse/partition"
)

// KafkaSink publishes one record per job, keyed by the job key, with the job as a JSON object.
// The partition address and run id travel as headers.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	runID  string
}

var _ Sink = (*KafkaSink)(nil)

func NewKafkaSink(brokers []string, topic, runID string) (*KafkaSink, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &KafkaSink{client: cl, topic: topic, runID: runID}, nil
}

func (ks *KafkaSink) Write(ctx context.Context, addr partition.Address, res *collapse.Result) error {
	records, err := kafkaRecords(ks.topic, ks.runID, addr, res)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return ks.client.ProduceSync(ctx, records...).FirstErr()
}

func kafkaRecords(topic, runID string, addr partition.Address, res *collapse.Result) ([]*kgo.Record, error) {
	jobs := Jobs(res)
	records := make([]*kgo.Record, 0, len(jobs))
	for _, j := range jobs {
		value, err := j.JSON()
		if err != nil {
			return nil, err
		}
		records = append(records, &kgo.Record{
			Topic: topic,
			Key:   []byte(j.Key),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "run", Value: []byte(runID)},
				{Key: "base", Value: []byte(addr.Base)},
				{Key: "shard", Value: []byte(addr.Shard)},
				{Key: "variant", Value: []byte(res.Variant)},
			},
		})
	}
	return records, nil
}

func (ks *KafkaSink) Close() error {
	ks.client.Close()
	return nil
}

func (ks *KafkaSink) String() string {
	return "kafka:" + ks.topic
}
