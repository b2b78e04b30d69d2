package interfaces

import (
	"context"
	"errors"

	intakeapp "solarops-cloud/internal/intake/application"
	intakeevents "solarops-cloud/internal/intake/application/events"
)

// RequestReceivedConsumer adapts intake request events into the synthesizer.
type RequestReceivedConsumer struct {
	app *intakeapp.Synthesizer
}

// NewRequestReceivedConsumer constructs a consumer.
func NewRequestReceivedConsumer(app *intakeapp.Synthesizer) (*RequestReceivedConsumer, error) {
	if app == nil {
		return nil, errors.New("intake consumer: nil synthesizer")
	}
	return &RequestReceivedConsumer{app: app}, nil
}

// Consume handles a request received event.
func (c *RequestReceivedConsumer) Consume(ctx context.Context, event intakeevents.RequestReceived) error {
	_, err := c.app.Synthesize(ctx, event)
	return err
}
