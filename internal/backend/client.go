/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gocaptioner/internal/domain"
	"gocaptioner/internal/storage"
)

// ErrUnauthorized is returned when the server rejects the bearer token, for
// example after it expired. Callers may request a fresh token and retry.
var ErrUnauthorized = errors.New("unauthorized")

// Client is a minimal HTTP client for the caption sync API.
// Push uploads the local library's caption records; Fetch reads them back for
// comparison and reporting. Fetch never writes caption files to disk.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new sync client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("server %s %s: %w", method, u.Path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// AuthToken requests a bearer token from the server and stores it on the
// client for subsequent calls.
func (c *Client) AuthToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	req := map[string]any{"subject": subject}
	if ttl > 0 {
		req["ttl_seconds"] = int64(ttl / time.Second)
	}
	var resp struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

// ListLibraries returns the libraries known to the server.
func (c *Client) ListLibraries(ctx context.Context) ([]Library, error) {
	var list []Library
	if err := c.doJSON(ctx, http.MethodGet, "/api/libraries", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PushCaptions uploads caption records for a library and returns how many the
// server accepted.
func (c *Client) PushCaptions(ctx context.Context, library string, records []domain.CaptionRecord) (int, error) {
	var resp pushResponse
	p := "/api/libraries/" + url.PathEscape(library) + "/captions"
	if err := c.doJSON(ctx, http.MethodPut, p, pushRequest{Records: records}, &resp); err != nil {
		return 0, err
	}
	return resp.Accepted, nil
}

// FetchCaptions downloads the caption records stored for a library.
func (c *Client) FetchCaptions(ctx context.Context, library string) ([]domain.CaptionRecord, error) {
	var list []domain.CaptionRecord
	p := "/api/libraries/" + url.PathEscape(library) + "/captions"
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SearchRemote runs a caption search on the server side.
func (c *Client) SearchRemote(ctx context.Context, library string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.NameContains != "" {
		v.Set("name", q.NameContains)
	}
	if q.Uncaptioned {
		v.Set("uncaptioned", "1")
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", fmt.Sprintf("%d", q.Offset))
	}
	p := "/api/libraries/" + url.PathEscape(library) + "/search"
	if enc := v.Encode(); enc != "" {
		p += "?" + enc
	}
	var list []storage.SearchResult
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
