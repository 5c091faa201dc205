package network

import (
	"context"
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// RetryPolicy configures how often a failed chunk request is repeated.
// Network errors and 5xx responses are retried with exponential backoff,
// 4xx responses fail immediately.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// MinWait is the wait before the first retry, doubled for every further one.
	MinWait time.Duration
	// MaxWait caps the wait between two attempts.
	MaxWait time.Duration
}

// DefaultRetryPolicy retries a request 3 times, waiting 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    1 * time.Second,
		MaxWait:    30 * time.Second,
	}
}

// NoRetry sends every request exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 0,
		MinWait:    time.Second,
		MaxWait:    time.Second,
	}
}

// newRetryableClient wraps httpClient into a retryable client following the policy.
// Exhausted retries return the last response (if any) instead of an error, so the
// caller can report the status and body the server sent.
func newRetryableClient(httpClient *http.Client, policy RetryPolicy, logger log.Logger) *retryablehttp.Client {
	client := retryhttp.NewClient(logger)
	client.HTTPClient = httpClient
	client.RetryMax = policy.MaxRetries
	client.RetryWaitMin = policy.MinWait
	client.RetryWaitMax = policy.MaxWait
	client.Backoff = retryablehttp.DefaultBackoff
	client.CheckRetry = createCustomRetryFunction(logger)
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warnf("Retrying %s %s (attempt %d/%d)", req.Method, req.URL.Redacted(), attempt, policy.MaxRetries)
		}
	}

	return client
}

func createCustomRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, requestErr error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// 429 included, client errors are final
		if requestErr == nil && resp != nil && resp.StatusCode > 0 && resp.StatusCode < http.StatusInternalServerError {
			return false, nil
		}

		retry, err := retryablehttp.DefaultRetryPolicy(ctx, resp, requestErr)
		logger.Debugf("CheckRetry: retry=%v ; err=%+v ; requestErr=%+v", retry, err, requestErr)
		return retry, err
	}
}
