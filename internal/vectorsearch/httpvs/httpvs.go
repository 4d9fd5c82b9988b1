// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package httpvs talks to a remote vector store over REST. A session is a
// bearer token obtained with basic credentials; the service answers 401 once
// the token expires.
package httpvs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sigil-dev/quarry/internal/vectorsearch"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// BackendName is the name this package registers under.
const BackendName = "http"

const defaultTimeout = 60 * time.Second

func init() {
	vectorsearch.RegisterBackend(BackendName, New)
}

// Client opens sessions against one named store.
type Client struct {
	base     *url.URL
	store    string
	username string
	password string
	http     *http.Client
}

// New validates cfg and returns a Client. No request is made.
func New(cfg vectorsearch.Config) (vectorsearch.Client, error) {
	if cfg.Endpoint == "" {
		return nil, quarryerr.New(quarryerr.CodeVectorRequestInvalid, "vector store endpoint is required")
	}
	if cfg.Name == "" {
		return nil, quarryerr.New(quarryerr.CodeVectorRequestInvalid, "vector store name is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.Endpoint, "/"))
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeVectorRequestInvalid, "parsing vector store endpoint")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		base:     base,
		store:    cfg.Name,
		username: cfg.Username,
		password: cfg.Password,
		http:     hc,
	}, nil
}

type sessionResponse struct {
	Token string `json:"token"`
}

// Connect exchanges the configured credentials for a session token.
func (c *Client) Connect(ctx context.Context) (vectorsearch.Session, error) {
	body, _ := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sessions"), bytes.NewReader(body))
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeVectorRequestInvalid, "building session request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	var out sessionResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, quarryerr.New(quarryerr.CodeVectorUpstreamFailure, "vector store returned an empty session token")
	}
	return &session{client: c, token: out.Token}, nil
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/" + strings.Join(escaped, "/")
	return u.String()
}

// do sends req and decodes a JSON body into out (when non-nil). Non-2xx
// responses become errors carrying the status code; 401 is tagged as an
// expired session.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeVectorUpstreamFailure, "vector store request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeVectorUpstreamFailure, "reading vector store response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("vector store returned %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(data)))
		if resp.StatusCode == http.StatusUnauthorized {
			return quarryerr.New(quarryerr.CodeVectorSessionExpired, msg)
		}
		return quarryerr.New(quarryerr.CodeVectorUpstreamFailure, msg)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeVectorUpstreamFailure, "decoding vector store response")
	}
	return nil
}

type session struct {
	client *Client
	token  string
}

type searchRequest struct {
	Question      string   `json:"question"`
	TopK          int      `json:"top_k"`
	OutputColumns []string `json:"output_columns,omitempty"`
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
}

func (s *session) Search(ctx context.Context, in vectorsearch.SearchRequest) (*vectorsearch.SearchResult, error) {
	body, err := json.Marshal(searchRequest{
		Question:      in.Question,
		TopK:          in.TopK,
		OutputColumns: in.OutputColumns,
	})
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeVectorRequestInvalid, "encoding search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.client.endpoint("vectorstores", s.client.store, "similarity-search"), bytes.NewReader(body))
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeVectorRequestInvalid, "building search request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	var out searchResponse
	if err := s.client.do(req, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []map[string]any{}
	}
	return &vectorsearch.SearchResult{Records: vectorsearch.Project(out.Results, in.OutputColumns)}, nil
}

// Close revokes the token. Failures are reported but the session is unusable
// either way.
func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.endpoint("sessions", "current"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.client.do(req, nil)
}
