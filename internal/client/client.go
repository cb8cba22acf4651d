// Package client is a small HTTP client for the minivault API, used by the
// minivault-cli tool for manual testing.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"minivault/pkg/types"
)

// DefaultBaseURL is where a locally started minivault listens.
const DefaultBaseURL = "http://localhost:8000"

// APIError is returned for non-2xx answers from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsAPIError reports whether err is an *APIError.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client for baseURL; empty means DefaultBaseURL.
func New(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: baseURL, HTTP: http.DefaultClient}
}

// Ask posts prompt to /generate and writes the answer to w.
// With stream set the body is copied chunk by chunk as it arrives and a final
// newline is added; otherwise the JSON body is written as received.
func (c *Client) Ask(ctx context.Context, prompt string, stream bool, w io.Writer) error {
	body, err := json.Marshal(types.GenerateRequest{Prompt: prompt})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("post /generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e types.ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if !stream {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		data = bytes.TrimRight(data, "\n")
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read response: %w", rerr)
		}
	}
	_, err = io.WriteString(w, "\n")
	return err
}
