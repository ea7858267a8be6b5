package mqtt

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/tphakala/capuchin-go/internal/detector"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
)

// callsTopic is appended to the base topic.
const callsTopic = "calls"

// Publisher sends detection summaries through a Client.
type Publisher struct {
	client Client
	topic  string
	now    func() time.Time
}

// NewPublisher returns a Publisher writing to <baseTopic>/calls.
func NewPublisher(client Client, baseTopic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  path.Join(baseTopic, callsTopic),
		now:    time.Now,
	}
}

// Topic returns the topic summaries are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

// PublishReport publishes the summary of one scanned recording, connecting
// first if needed.
func (p *Publisher) PublishReport(ctx context.Context, runID, source, file string, report *detector.Report) error {
	payload, err := json.Marshal(NewCallSummaryDTO(runID, source, file, report, p.now()))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_summary").
			Build()
	}

	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}

	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		return err
	}

	GetLogger().Info("detection summary published",
		logger.String("topic", p.topic),
		logger.String("run_id", runID),
		logger.Int("calls", report.CallCount))
	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	p.client.Disconnect()
}
