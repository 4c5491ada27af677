package remote

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"
)

var (
	// retryBackoff is the delay before the first retry; it doubles each time.
	retryBackoff = time.Second
	// maxRetryDelay caps both the doubled backoff and a server's Retry-After.
	maxRetryDelay = 30 * time.Second
)

// retryDo sends req up to maxAttempts times. Network errors, 429 and 5xx
// responses are retried; anything else is returned as is. A request body
// is buffered once so it can be replayed. When a 429 or 503 carries
// Retry-After in seconds, that delay replaces the backoff for the next try.
func retryDo(client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	maxAttempts = max(maxAttempts, 1)

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	var (
		lastResp *http.Response
		lastErr  error
		wait     = retryBackoff
		next     time.Duration
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(next)
			select {
			case <-req.Context().Done():
				t.Stop()
				return nil, req.Context().Err()
			case <-t.C:
			}
		}
		if payload != nil {
			req.Body = io.NopCloser(bytes.NewReader(payload))
			req.ContentLength = int64(len(payload))
		}

		resp, err := client.Do(req)
		next = min(wait, maxRetryDelay)
		wait *= 2
		if err != nil {
			lastResp, lastErr = nil, err
			continue
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if d, ok := retryAfter(resp); ok {
			next = d
		}

		// Keep the final body readable for the caller's error message.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseLimitDefault))
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		lastResp, lastErr = resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfter reads a delta-seconds Retry-After header. HTTP dates are
// ignored and fall back to the regular backoff.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second, maxRetryDelay), true
}
