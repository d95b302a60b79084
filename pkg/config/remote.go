package config

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
)

// remoteProbeTimeout bounds the startup config probe. The probe is
// best-effort; a slow backend must not delay first paint.
const remoteProbeTimeout = 2 * time.Second

// RemoteConfig is the optional /__config__ document a backend can serve to
// steer clients at runtime.
type RemoteConfig struct {
	BaseURL   string `json:"apiBaseUrl"`
	DashKey   string `json:"dashKey"`
	Intervals struct {
		StateSeconds   int `json:"state"`
		LayoutSeconds  int `json:"layout"`
		HealthSeconds  int `json:"health"`
		ProfileSeconds int `json:"profile"`
	} `json:"intervals"`
}

// FetchRemote probes baseURL for a /__config__ document. Any failure
// (unreachable, non-200, undecodable) reports ok=false; the caller proceeds
// with local config.
func FetchRemote(ctx context.Context, baseURL string) (RemoteConfig, bool) {
	var rc RemoteConfig
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return rc, false
	}

	ctx, cancel := context.WithTimeout(ctx, remoteProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/__config__", nil)
	if err != nil {
		return rc, false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		debug.Log("config: remote probe failed: %v", err)
		return rc, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return rc, false
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return rc, false
	}
	if err := json.Unmarshal(raw, &rc); err != nil {
		debug.Log("config: remote config undecodable: %v", err)
		return rc, false
	}
	return rc, true
}

// ApplyRemote merges a remote config document. Remote values override local
// file values but environment variables are applied after, so PJ_* still
// wins; call ApplyEnv after ApplyRemote.
func (c *Config) ApplyRemote(rc RemoteConfig) {
	if v := strings.TrimSpace(rc.BaseURL); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(rc.DashKey); v != "" {
		c.DashKey = v
	}
	if rc.Intervals.StateSeconds > 0 {
		c.Intervals.StateSeconds = rc.Intervals.StateSeconds
	}
	if rc.Intervals.LayoutSeconds > 0 {
		c.Intervals.LayoutSeconds = rc.Intervals.LayoutSeconds
	}
	if rc.Intervals.HealthSeconds > 0 {
		c.Intervals.HealthSeconds = rc.Intervals.HealthSeconds
	}
	if rc.Intervals.ProfileSeconds > 0 {
		c.Intervals.ProfileSeconds = rc.Intervals.ProfileSeconds
	}
	c.normalize()
}
