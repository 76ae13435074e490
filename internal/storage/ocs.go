// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

// publicLinkShare is the OCS share type of an anonymous link share.
const publicLinkShare = 3

// shareClient talks to the ownCloud/Nextcloud OCS files_sharing API.
type shareClient struct {
	api      string
	user     string
	password string
	http     *retryablehttp.Client
}

type ocsMeta struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statuscode"`
	Message    string `json:"message"`
}

type ocsShare struct {
	ShareType int    `json:"share_type"`
	Path      string `json:"path"`
	URL       string `json:"url"`
}

type ocsEnvelope struct {
	OCS struct {
		Meta ocsMeta         `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

// deriveShareAPI maps https://host/remote.php/webdav to the OCS share
// endpoint on the same host.
func deriveShareAPI(davURL string) string {
	base := strings.TrimRight(davURL, "/")
	if i := strings.Index(base, "/remote.php"); i >= 0 {
		base = base[:i]
	}
	return base + "/ocs/v1.php/apps/files_sharing/api/v1/shares"
}

// newShareClient builds the OCS client. Retries happen inside
// retryablehttp with the storage retry policy, so a failure coming out of
// it has already used the whole budget.
func newShareClient(api, user, password string, timeout time.Duration, policy RetryPolicy) *shareClient {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = max(policy.MaxAttempts-1, 0)
	client.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return policy.Wait(attemptNum)
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}

	return &shareClient{
		api:      api,
		user:     user,
		password: password,
		http:     client,
	}
}

func (c *shareClient) setTransport(rt http.RoundTripper) {
	c.http.HTTPClient.Transport = rt
}

func (c *shareClient) close() {
	c.http.HTTPClient.CloseIdleConnections()
}

// publicLink returns the first existing link share of p or creates one.
func (c *shareClient) publicLink(ctx context.Context, p string) (string, error) {
	shares, err := c.existing(ctx, p)
	if err != nil {
		return "", err
	}
	for _, s := range shares {
		if s.ShareType == publicLinkShare && s.URL != "" {
			return s.URL, nil
		}
	}
	return c.create(ctx, p)
}

func (c *shareClient) existing(ctx context.Context, p string) ([]ocsShare, error) {
	q := url.Values{}
	q.Set("path", p)
	q.Set("reshares", "false")
	q.Set("format", "json")

	data, err := c.do(ctx, http.MethodGet, c.api+"?"+q.Encode(), nil, p)
	if err != nil {
		return nil, err
	}

	var shares []ocsShare
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, &shares); err != nil {
		// Some servers return an empty object instead of an empty list.
		return nil, nil
	}
	return shares, nil
}

func (c *shareClient) create(ctx context.Context, p string) (string, error) {
	form := url.Values{}
	form.Set("path", p)
	form.Set("shareType", fmt.Sprint(publicLinkShare))

	data, err := c.do(ctx, http.MethodPost, c.api+"?format=json", []byte(form.Encode()), p)
	if err != nil {
		return "", err
	}

	var share ocsShare
	if err := json.Unmarshal(data, &share); err != nil {
		return "", fmt.Errorf("share %q: decode: %w", p, err)
	}
	if share.URL == "" {
		return "", fmt.Errorf("share %q: server returned no url", p)
	}
	return share.URL, nil
}

func (c *shareClient) do(ctx context.Context, method, target string, body []byte, p string) (json.RawMessage, error) {
	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, raw)
	if err != nil {
		return nil, fmt.Errorf("share %q: %w", p, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: share %q: %w", ErrUnavailable, p, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: share %q: %w", ErrUnavailable, p, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("share %q: %w", p, ErrNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: share %q: http %d", ErrUnavailable, p, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("share %q: http %d", p, resp.StatusCode)
	}

	var env ocsEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("share %q: decode: %w", p, err)
	}

	// OCS v1 reports 100 for success, v2 reports 200.
	switch env.OCS.Meta.StatusCode {
	case 100, 200:
		return env.OCS.Data, nil
	case 404:
		return nil, fmt.Errorf("share %q: %w", p, ErrNotFound)
	default:
		return nil, fmt.Errorf("share %q: ocs %d: %s", p, env.OCS.Meta.StatusCode, env.OCS.Meta.Message)
	}
}
