// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig configures the hierarchical ownCloud/Nextcloud backend.
type WebDAVConfig struct {
	// URL is the WebDAV root, e.g. https://cloud.example.com/remote.php/webdav
	URL      string
	User     string
	Password string
	// ShareAPI is the OCS files_sharing endpoint. Derived from URL when empty.
	ShareAPI string
	Timeout  time.Duration
}

// WebDAVBackend stores the result hierarchy as real directories on a WebDAV
// server and shares files through the OCS share API.
type WebDAVBackend struct {
	client *gowebdav.Client
	shares *shareClient
}

// NewWebDAVBackend builds a backend for cfg. Connect must be called before
// the first operation.
func NewWebDAVBackend(cfg WebDAVConfig, policy RetryPolicy) (*WebDAVBackend, error) {
	if cfg.URL == "" {
		return nil, errors.New("webdav: url is required")
	}

	client := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Password)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	shareAPI := cfg.ShareAPI
	if shareAPI == "" {
		shareAPI = deriveShareAPI(cfg.URL)
	}

	return &WebDAVBackend{
		client: client,
		shares: newShareClient(shareAPI, cfg.User, cfg.Password, cfg.Timeout, policy),
	}, nil
}

// SetTransport replaces the HTTP transport of both the WebDAV and the share
// clients.
func (b *WebDAVBackend) SetTransport(rt http.RoundTripper) {
	b.client.SetTransport(rt)
	b.shares.setTransport(rt)
}

func davPath(p string) string {
	return "/" + Clean(p)
}

// classifyDAV maps gowebdav errors onto ErrNotFound and TransientError.
func classifyDAV(op, p string, err error) error {
	if err == nil {
		return nil
	}
	if gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("%s %q: %w", op, p, ErrNotFound)
	}

	var se gowebdav.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status >= 500, se.Status == http.StatusTooManyRequests, se.Status == http.StatusRequestTimeout:
			return transient(op, err)
		default:
			return fmt.Errorf("%s %q: %w", op, p, err)
		}
	}

	if IsTransient(err) {
		return transient(op, err)
	}
	return fmt.Errorf("%s %q: %w", op, p, err)
}

// Connect authenticates against the server.
func (b *WebDAVBackend) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyDAV("connect", "/", b.client.Connect())
}

// Exists implements Backend.
func (b *WebDAVBackend) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := b.client.Stat(davPath(p))
	if err != nil {
		err = classifyDAV("exists", p, err)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List implements Backend. Depth 1 lists immediate children; deeper
// listings recurse into sub-directories.
func (b *WebDAVBackend) List(ctx context.Context, p string, opts ListOptions) ([]Entry, error) {
	depth := opts.Depth
	if depth <= 0 {
		depth = 1
	}
	if opts.Recursive {
		depth = -1
	}
	var out []Entry
	if err := b.list(ctx, Clean(p), depth, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *WebDAVBackend) list(ctx context.Context, p string, depth int, out *[]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	infos, err := b.client.ReadDir(davPath(p))
	if err != nil {
		return classifyDAV("list", p, err)
	}

	for _, fi := range infos {
		entry := Entry{Path: Join(p, fi.Name()), Name: fi.Name(), Type: EntryFile}
		if fi.IsDir() {
			entry.Type = EntryDir
		}
		*out = append(*out, entry)

		if entry.IsDir() && depth != 1 {
			if err := b.list(ctx, entry.Path, depth-1, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Read implements Backend.
func (b *WebDAVBackend) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := b.client.Read(davPath(p))
	if err != nil {
		return nil, classifyDAV("read", p, err)
	}
	return data, nil
}

// Write implements Backend.
func (b *WebDAVBackend) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyDAV("write", p, b.client.Write(davPath(p), data, 0o644))
}

// Mkdir implements Backend.
func (b *WebDAVBackend) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyDAV("mkdir", p, b.client.MkdirAll(davPath(p), os.ModeDir|0o755))
}

// Copy implements Backend. Collections are copied with depth infinity.
func (b *WebDAVBackend) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyDAV("copy", src, b.client.Copy(davPath(src), davPath(dst), false))
}

// Delete implements Backend.
func (b *WebDAVBackend) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyDAV("delete", p, b.client.RemoveAll(davPath(p)))
}

// ShareLink returns the existing public link of p, creating one if needed.
func (b *WebDAVBackend) ShareLink(ctx context.Context, p string) (string, error) {
	return b.shares.publicLink(ctx, davPath(p))
}

// Close implements Backend. WebDAV is stateless over HTTP.
func (b *WebDAVBackend) Close() error {
	b.shares.close()
	return nil
}
