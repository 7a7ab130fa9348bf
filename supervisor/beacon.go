package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Beacon pings an external uptime endpoint: the last-resort liveness signal
// once automated restart is exhausted, letting an operator or external
// watchdog detect and intervene.
type Beacon struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

// re-writes HTTP client DEBUG to INFO level (this is where retry is logged)
func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func NewBeacon(url string, logger *slog.Logger) *Beacon {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "beacon")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{logger})
	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second

	return &Beacon{
		url:    url,
		client: client,
		logger: logger,
	}
}

// Ping issues one heartbeat GET. Connection errors and 5xx are already
// retried inside the client; a persistent failure surfaces as an error.
func (b *Beacon) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
