package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client accesses the tgen-svc control surface.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a Client for the given server URI.
func NewClient(uri string) (*Client, error) {
	u, e := url.Parse(uri)
	if e != nil {
		return nil, fmt.Errorf("bad server URI: %w", e)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bad server URI scheme %q", u.Scheme)
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Do sends one request and decodes the response into out (may be nil).
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		j, e := json.Marshal(body)
		if e != nil {
			return e
		}
		rd = bytes.NewReader(j)
	}

	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	req, e := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if e != nil {
		return e
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, e := c.http.Do(req)
	if e != nil {
		return e
	}
	defer resp.Body.Close()

	data, e := io.ReadAll(resp.Body)
	if e != nil {
		return e
	}
	if resp.StatusCode != http.StatusOK {
		var eb struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, eb.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// clientDoPrint sends one request and prints the response as JSON lines.
// If key is non-empty, only that field of the response object is printed;
// slices print one element per line.
func clientDoPrint(ctx context.Context, method, path string, body any, key string) error {
	var value any
	if e := client.Do(ctx, method, path, body, &value); e != nil {
		return e
	}
	if key != "" {
		if obj, ok := value.(map[string]any); ok {
			value = obj[key]
		}
	}
	if items, ok := value.([]any); ok {
		for _, item := range items {
			j, _ := json.Marshal(item)
			fmt.Println(string(j))
		}
		return nil
	}
	j, _ := json.Marshal(value)
	fmt.Println(string(j))
	return nil
}

// readStdinJSON decodes one JSON document from stdin, hinting on a tty wait.
func readStdinJSON(out any) error {
	hasInput := make(chan bool, 1)
	go func() {
		delay := time.NewTimer(2 * time.Second)
		defer delay.Stop()
		select {
		case <-hasInput:
		case <-delay.C:
			fmt.Fprintln(os.Stderr, "Hint: pass parameters via stdin")
		}
	}()
	e := json.NewDecoder(os.Stdin).Decode(out)
	hasInput <- true
	return e
}
