// Package appwrite implements the document-store and schema-store
// capabilities against an Appwrite-compatible REST backend, plus a
// websocket-based realtime subscriber.
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raisfeld-ori/appwrite-orm/store"
)

type Client struct {
	endpoint string
	project  string
	key      string
	http     *http.Client
	log      *zap.SugaredLogger
}

// NewClient builds a client for an endpoint like
// "https://cloud.appwrite.io/v1". The api key is optional; without it only
// operations permitted for the anonymous role succeed.
func NewClient(endpoint, project, key string, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		project:  project,
		key:      key,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", c.project)
	if c.key != "" {
		req.Header.Set("X-Appwrite-Key", c.key)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= 400 {
		api_err := apiError{}
		if err := json.Unmarshal(buf, &api_err); err != nil || api_err.Message == "" {
			api_err.Message = strings.TrimSpace(string(buf))
		}
		if res.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", api_err.Message, store.ErrNotFound)
		}
		return fmt.Errorf("appwrite: %s (status %d)", api_err.Message, res.StatusCode)
	}

	if out == nil || len(buf) == 0 {
		return nil
	}
	return json.Unmarshal(buf, out)
}
