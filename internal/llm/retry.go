package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// retry runs fn up to MaxRetries+1 times with exponential backoff between transient failures.
func (c *Client) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	defer func() { callDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	var lastErr error
	tries := c.opts.MaxRetries + 1
	for attempt := 0; attempt < tries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		callRetries.WithLabelValues(op).Inc()
		if attempt < tries-1 {
			select {
			case <-time.After(c.opts.Backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
