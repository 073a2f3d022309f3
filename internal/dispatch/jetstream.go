package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/crashgate-systems/crashgate/internal/event"
	"github.com/crashgate-systems/crashgate/internal/metrics"
)

const (
	subjectPrefix      = "ingest.event."
	SubjectIssue       = subjectPrefix + "issue"
	SubjectTransaction = subjectPrefix + "transaction"
)

// SubjectFor maps an event kind to its queue subject. Transactions flow to
// their own subject; everything else is an issue event.
func SubjectFor(kind event.Kind) string {
	if kind == event.KindTransaction {
		return SubjectTransaction
	}
	return SubjectIssue
}

// JetStreamDispatcher publishes interchange events to a NATS JetStream
// stream and waits for the server ack, so a returned handle means the event
// survived the boundary.
type JetStreamDispatcher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewJetStreamDispatcher connects to NATS and ensures the ingest stream
// exists.
func NewJetStreamDispatcher(ctx context.Context, url, streamName string) (*JetStreamDispatcher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ">"},
		MaxAge:    24 * time.Hour,
		MaxBytes:  1024 * 1024 * 1024,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create stream %s: %w", streamName, err)
	}

	return &JetStreamDispatcher{conn: conn, js: js, stream: stream}, nil
}

// Enqueue publishes the event and blocks until JetStream acknowledges it.
func (d *JetStreamDispatcher) Enqueue(ctx context.Context, ev *event.InterchangeIssueEvent) (TaskHandle, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal interchange event: %w", err)
	}

	start := time.Now()
	ack, err := d.js.Publish(ctx, SubjectFor(ev.Kind), data)
	metrics.EnqueueDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EnqueueErrors.Inc()
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	return TaskHandle(fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence)), nil
}

// Info returns current stream state, used by the admin CLI.
func (d *JetStreamDispatcher) Info(ctx context.Context) (*jetstream.StreamInfo, error) {
	return d.stream.Info(ctx)
}

func (d *JetStreamDispatcher) Close() error {
	d.conn.Close()
	return nil
}
