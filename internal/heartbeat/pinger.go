package heartbeat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger notifies a Healthchecks-style endpoint that the archiver is alive.
// The base URL receives success pings; "/start" and "/fail" suffixes mark run
// start and failure. A Pinger with an empty URL is a no-op, so callers never
// need to branch on whether monitoring is configured.
type Pinger struct {
	url    string
	client *http.Client
	logger *logrus.Logger
}

// NewPinger creates a pinger for the given check URL. url may be empty.
func NewPinger(url string, timeout time.Duration, logger *logrus.Logger) *Pinger {
	return &Pinger{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Ping signals the check that processing is alive.
func (p *Pinger) Ping(ctx context.Context) {
	p.send(ctx, "")
}

// Start signals the check that a run has begun.
func (p *Pinger) Start(ctx context.Context) {
	p.send(ctx, "/start")
}

// Fail signals the check that the run failed.
func (p *Pinger) Fail(ctx context.Context) {
	p.send(ctx, "/fail")
}

// send fires the ping and swallows errors; a monitoring outage must never
// interrupt archival.
func (p *Pinger) send(ctx context.Context, suffix string) {
	if p.url == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+suffix, nil)
	if err != nil {
		p.logger.WithError(err).Debug("Failed to build heartbeat request")
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithError(err).Warn("Heartbeat ping failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		p.logger.WithField("status", fmt.Sprintf("%d", resp.StatusCode)).Warn("Heartbeat ping rejected")
	}
}
