package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/magiclogon/faceid/internal/models"
)

// FaceEventHandler processes one decoded event. A returned error naks the
// message so it is redelivered.
type FaceEventHandler func(ctx context.Context, ev models.FaceEvent) error

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

// EnsureStream makes sure FACES exists so the consumer can start before the API.
func (c *Consumer) EnsureStream(ctx context.Context) error {
	return ensureStream(ctx, c.js)
}

// ConsumeFaceEvents starts a durable consumer on FACES. workerCount
// goroutines process messages concurrently. It returns once the fetch loop
// is running; the loop stops when ctx is cancelled.
func (c *Consumer) ConsumeFaceEvents(ctx context.Context, consumerName string, handler FaceEventHandler, workerCount int) error {
	if workerCount < 1 {
		workerCount = 1
	}

	stream, err := c.js.Stream(ctx, FacesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", FacesStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		FilterSubject: FacesSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
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
				slog.Warn("fetch face events error", "error", err)
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
				handleMsg(ctx, workerID, msg, handler)
			}
		}(i)
	}

	slog.Info("face event consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

func handleMsg(ctx context.Context, workerID int, msg jetstream.Msg, handler FaceEventHandler) {
	var ev models.FaceEvent
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		// Redelivery cannot fix a malformed payload.
		slog.Error("decode face event", "worker", workerID, "error", err, "subject", msg.Subject())
		_ = msg.Term()
		return
	}

	if err := handler(ctx, ev); err != nil {
		slog.Error("process face event error", "worker", workerID, "error", err, "subject", msg.Subject(), "event_id", ev.ID)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Ping() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
