package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/pkg/dto"
)

// UploadHandler processes one validated upload.
type UploadHandler func(ctx context.Context, up event.Upload) error

// RecordHandler receives one announced record.
type RecordHandler func(ctx context.Context, rec dto.ImageResponse) error

type disposition int

const (
	ack disposition = iota
	nak
)

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// dispatchUpload parses a notification and runs handler on it. Payloads that
// can never succeed are acked so they are not redelivered.
func dispatchUpload(ctx context.Context, data []byte, handler UploadHandler) disposition {
	up, err := event.Parse(data)
	if err != nil {
		slog.Warn("dropping malformed upload notification", "error", err)
		return ack
	}
	if err := handler(ctx, up); err != nil {
		slog.Error("process upload error", "bucket", up.Bucket, "key", up.Key, "error", err)
		return nak
	}
	return ack
}

func dispatchRecord(ctx context.Context, data []byte, handler RecordHandler) disposition {
	var rec dto.ImageResponse
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("dropping undecodable record", "error", err)
		return ack
	}
	if err := handler(ctx, rec); err != nil {
		slog.Error("process record error", "image_id", rec.ImageID, "error", err)
		return nak
	}
	return ack
}

func settle(msg jetstream.Msg, d disposition) {
	if d == nak {
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// ConsumeUploads starts consuming the UPLOADS stream.
// workerCount determines how many goroutines process messages concurrently.
func (c *Consumer) ConsumeUploads(ctx context.Context, consumerName string, handler UploadHandler, workerCount int) error {
	cons, err := c.durable(ctx, UploadsStreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Minute,
		MaxDeliver:    3,
		FilterSubject: UploadsSubjectBase + ".>",
	})
	if err != nil {
		return err
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch uploads error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				d := dispatchUpload(ctx, msg.Data(), handler)
				if d == nak {
					slog.Debug("upload will be redelivered", "worker", workerID, "subject", msg.Subject())
				}
				settle(msg, d)
			}
		}(i)
	}

	slog.Info("upload consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// ConsumeRecords starts consuming newly stored records (for the API to
// broadcast via WebSocket).
func (c *Consumer) ConsumeRecords(ctx context.Context, consumerName string, handler RecordHandler) error {
	cons, err := c.durable(ctx, RecordsStreamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: RecordsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				settle(msg, dispatchRecord(ctx, msg.Data(), handler))
			}
		}
	}()

	slog.Info("record consumer started", "consumer", consumerName)
	return nil
}

func (c *Consumer) durable(ctx context.Context, streamName string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", streamName, err)
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", cfg.Name, err)
	}
	return cons, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}

