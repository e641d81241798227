package fireblob

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// newRequest builds a request with the auth header applied when a
// TokenSource is configured.
func (s *Storage) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.opts.TokenSource != nil {
		tok, err := s.opts.TokenSource.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire auth token: %w", err)
		}
		req.Header.Set("Authorization", "Firebase "+tok)
	}
	return req, nil
}

// do executes req and returns the response status and full body. Transport
// failures and non-2xx statuses come back as a *StorageError.
func (s *Storage) do(req *http.Request) (int, string, error) {
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, "", &StorageError{URL: req.URL.String(), Body: NoBody, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", &StorageError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       NoBody,
			Err:        fmt.Errorf("read response body: %w", err),
		}
	}
	body := string(raw)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return resp.StatusCode, body, &StorageError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return resp.StatusCode, body, nil
}

// fetch performs a bodyless request and returns the response status and
// body.
func (s *Storage) fetch(ctx context.Context, method, rawURL string) (int, string, error) {
	req, err := s.newRequest(ctx, method, rawURL, nil)
	if err != nil {
		return 0, "", &StorageError{URL: rawURL, Body: NoBody, Err: err}
	}
	return s.do(req)
}
