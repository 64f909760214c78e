package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"rodinstudio/internal/storage"
)

// maxCachedArtifactBytes bounds what is buffered for the artifact cache.
// Larger files stream through uncached.
const maxCachedArtifactBytes = 256 << 20

var (
	errHostNotAllowed = errors.New("artifact host is not allowed")
	errInvalidURL     = errors.New("artifact url is invalid")
)

// ProxyArtifact streams an artifact from an allow-listed host. This is the
// proxied form of model URLs handed to viewers.
func (a *App) ProxyArtifact(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	u, err := a.checkArtifactURL(raw)
	if err != nil {
		if errors.Is(err, errHostNotAllowed) {
			a.error(w, http.StatusForbidden, "forbidden", err.Error())
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	body, contentType, err := a.openArtifact(r.Context(), u)
	if err != nil {
		a.Logger.Warn().Err(err).Str("host", u.Host).Msg("artifact fetch failed")
		a.error(w, http.StatusBadGateway, "upstream", "failed to fetch artifact")
		return
	}
	defer body.Close()

	name := path.Base(u.Path)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		a.Logger.Debug().Err(err).Msg("artifact stream interrupted")
	}
}

func (a *App) checkArtifactURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", errInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, errInvalidURL
	}
	if !a.allowedHost(u.Hostname()) {
		return nil, errHostNotAllowed
	}
	return u, nil
}

// allowedHost accepts listed hosts and their subdomains.
func (a *App) allowedHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for allowed := range a.allowlist {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// openArtifact returns the artifact body from the cache, or fetches it and
// writes it through the cache when one is configured.
func (a *App) openArtifact(ctx context.Context, u *url.URL) (io.ReadCloser, string, error) {
	raw := u.String()
	key := storage.KeyForURL(raw)
	if a.Artifacts != nil {
		data, contentType, err := a.Artifacts.Get(ctx, key)
		switch {
		case err == nil:
			a.Metrics.ArtifactCache(true)
			if contentType == "" {
				contentType = storage.ContentTypeFor(u.Path)
			}
			return io.NopCloser(bytes.NewReader(data)), contentType, nil
		case !errors.Is(err, storage.ErrNotFound):
			a.Logger.Warn().Err(err).Str("key", key).Msg("artifact cache read failed")
		}
		a.Metrics.ArtifactCache(false)
	}

	resp, err := a.Rodin.Fetch(ctx, raw, a.allowedHost)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("artifact fetch: unexpected status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") || strings.HasPrefix(contentType, "binary/") {
		contentType = storage.ContentTypeFor(u.Path)
	}
	if a.Artifacts == nil {
		return resp.Body, contentType, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedArtifactBytes+1))
	if err != nil {
		resp.Body.Close()
		return nil, "", fmt.Errorf("artifact fetch: read body: %w", err)
	}
	if len(data) > maxCachedArtifactBytes {
		return readCloser{Reader: io.MultiReader(bytes.NewReader(data), resp.Body), Closer: resp.Body}, contentType, nil
	}
	resp.Body.Close()
	if err := a.Artifacts.Put(ctx, key, data, contentType); err != nil {
		a.Logger.Warn().Err(err).Str("key", key).Msg("artifact cache write failed")
	}
	return io.NopCloser(bytes.NewReader(data)), contentType, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
