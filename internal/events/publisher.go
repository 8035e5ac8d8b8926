package events

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// WebhookPublisher drains a Bus and POSTs each event as JSON to a configured
// endpoint. Delivery is best effort: failures are logged, not retried beyond
// the client's retry policy, and never surface to the request path.
type WebhookPublisher struct {
	bus    *Bus
	client *resty.Client
	url    string
	log    zerolog.Logger
	wg     conc.WaitGroup
}

// NewWebhookPublisher builds a publisher for the given endpoint URL.
func NewWebhookPublisher(bus *Bus, url string, log zerolog.Logger) *WebhookPublisher {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &WebhookPublisher{bus: bus, client: client, url: url, log: log}
}

// Start launches the delivery loop. It drains until the bus closes or ctx is
// cancelled.
func (p *WebhookPublisher) Start(ctx context.Context) {
	p.wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-p.bus.Events():
				if !ok {
					return
				}
				p.deliver(ctx, ev)
			}
		}
	})
}

// Wait blocks until the delivery loop has exited.
func (p *WebhookPublisher) Wait() { p.wg.Wait() }

func (p *WebhookPublisher) deliver(ctx context.Context, ev Event) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ev).
		Post(p.url)
	if err != nil {
		p.log.Warn().Err(err).Str("type", ev.Type).Msg("webhook delivery failed")
		return
	}
	if resp.IsError() {
		p.log.Warn().
			Int("status", resp.StatusCode()).
			Str("type", ev.Type).
			Msg("webhook endpoint rejected event")
	}
}
