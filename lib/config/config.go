// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is not given.
const EnvironmentVariable = "BUREAU_PREVIEW_CONFIG"

// Content encodings accepted for frame delivery bodies.
const (
	EncodingIdentity = "identity"
	EncodingGzip     = "gzip"
	EncodingZstd     = "zstd"
)

// Stream is the configuration of one streaming run. Durations are
// expressed in (fractional) seconds to match the command line; use
// the accessor methods to get time.Duration values.
type Stream struct {
	// TargetURL is the page to capture, typically the sandbox's dev
	// server (http://localhost:5173).
	TargetURL string `yaml:"target_url" json:"target_url"`

	// ControlPlaneURL is the base URL frames are posted under.
	ControlPlaneURL string `yaml:"control_plane_url" json:"control_plane_url"`

	// SessionID identifies the preview stream to the control plane.
	SessionID string `yaml:"session_id" json:"session_id"`

	// AuthToken is sent as "Authorization: Bearer <token>".
	AuthToken string `yaml:"auth_token" json:"auth_token"`

	// AuthTokenFile is read when AuthToken is empty. Keeps the token
	// out of the process arguments.
	AuthTokenFile string `yaml:"auth_token_file" json:"auth_token_file"`

	IntervalSeconds float64 `yaml:"interval" json:"interval"`

	ViewportWidth  int `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height" json:"viewport_height"`

	// Quality is the JPEG quality, 0–100.
	Quality int `yaml:"quality" json:"quality"`

	// MaxRetries is the number of additional delivery attempts after
	// the first one fails.
	MaxRetries        int     `yaml:"max_retries" json:"max_retries"`
	RetryDelaySeconds float64 `yaml:"retry_delay" json:"retry_delay"`

	ProbeTimeoutSeconds      float64 `yaml:"probe_timeout" json:"probe_timeout"`
	NavigationTimeoutSeconds float64 `yaml:"navigation_timeout" json:"navigation_timeout"`
	DeliveryTimeoutSeconds   float64 `yaml:"delivery_timeout" json:"delivery_timeout"`

	// ContentEncoding compresses frame bodies: identity, gzip, or zstd.
	ContentEncoding string `yaml:"content_encoding" json:"content_encoding"`

	// StatusFile, when set, receives a CBOR status snapshot after
	// every phase change and frame outcome.
	StatusFile string `yaml:"status_file" json:"status_file"`

	// BrowserBin overrides the Chromium binary. Empty means let the
	// launcher find or download one.
	BrowserBin string `yaml:"browser_bin" json:"browser_bin"`

	// BrowserNoSandbox disables Chromium's own sandbox, which cannot
	// start inside most container sandboxes.
	BrowserNoSandbox bool `yaml:"browser_no_sandbox" json:"browser_no_sandbox"`
}

// Default returns a Stream with every optional field at its default.
// The four identifying fields (target, control plane, session, token)
// are left empty.
func Default() *Stream {
	return &Stream{
		IntervalSeconds:          2.0,
		ViewportWidth:            1280,
		ViewportHeight:           720,
		Quality:                  80,
		MaxRetries:               3,
		RetryDelaySeconds:        1.0,
		ProbeTimeoutSeconds:      60,
		NavigationTimeoutSeconds: 30,
		DeliveryTimeoutSeconds:   30,
		ContentEncoding:          EncodingIdentity,
	}
}

// Interval is the pause between capture cycles.
func (s *Stream) Interval() time.Duration { return seconds(s.IntervalSeconds) }

// RetryDelay is the fixed pause between delivery attempts.
func (s *Stream) RetryDelay() time.Duration { return seconds(s.RetryDelaySeconds) }

// ProbeTimeout is the total budget for waiting on the target.
func (s *Stream) ProbeTimeout() time.Duration { return seconds(s.ProbeTimeoutSeconds) }

// NavigationTimeout bounds the initial page load.
func (s *Stream) NavigationTimeout() time.Duration { return seconds(s.NavigationTimeoutSeconds) }

// DeliveryTimeout bounds a single frame POST.
func (s *Stream) DeliveryTimeout() time.Duration { return seconds(s.DeliveryTimeoutSeconds) }

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

// ResolvePath returns the config file to load: flagValue when set,
// else $BUREAU_PREVIEW_CONFIG, else "" (no file).
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvironmentVariable)
}

// Load returns Default() overlaid with the file at path. An empty path
// returns the defaults unchanged.
func Load(path string) (*Stream, error) {
	stream := Default()
	if path == "" {
		return stream, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := stream.decode(path, data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stream.expandVariables()
	return stream, nil
}

func (s *Stream) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		// An empty document decodes to io.EOF: no overrides.
		if err := decoder.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing YAML: %w", err)
		}
		return nil
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(s); err != nil {
			return fmt.Errorf("parsing JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported config extension %q (want .yaml, .yml, .json, or .jsonc)", filepath.Ext(path))
	}
}

var variablePattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVariables substitutes ${NAME} and ${NAME:-default} in every
// string field from the process environment.
func (s *Stream) expandVariables() {
	for _, field := range []*string{
		&s.TargetURL, &s.ControlPlaneURL, &s.SessionID, &s.AuthToken,
		&s.AuthTokenFile, &s.ContentEncoding, &s.StatusFile, &s.BrowserBin,
	} {
		*field = expandVariables(*field)
	}
}

func expandVariables(value string) string {
	return variablePattern.ReplaceAllStringFunc(value, func(match string) string {
		parts := variablePattern.FindStringSubmatch(match)
		if environmentValue := os.Getenv(parts[1]); environmentValue != "" {
			return environmentValue
		}
		return parts[2]
	})
}

// ResolveAuthToken fills AuthToken from AuthTokenFile when the token
// was not given directly. Setting both is an error.
func (s *Stream) ResolveAuthToken() error {
	if s.AuthTokenFile == "" {
		return nil
	}
	if s.AuthToken != "" {
		return errors.New("auth token and auth token file are mutually exclusive")
	}
	data, err := os.ReadFile(s.AuthTokenFile)
	if err != nil {
		return fmt.Errorf("reading auth token file: %w", err)
	}
	s.AuthToken = strings.TrimSpace(string(data))
	if s.AuthToken == "" {
		return fmt.Errorf("auth token file %s is empty", s.AuthTokenFile)
	}
	return nil
}

// Validate reports every invalid field at once.
func (s *Stream) Validate() error {
	var errs []error

	if err := validateHTTPURL("target_url", s.TargetURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateHTTPURL("control_plane_url", s.ControlPlaneURL); err != nil {
		errs = append(errs, err)
	}
	if s.SessionID == "" {
		errs = append(errs, errors.New("session_id is required"))
	}
	if s.AuthToken == "" {
		errs = append(errs, errors.New("auth_token is required"))
	}
	if s.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %g", s.IntervalSeconds))
	}
	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		errs = append(errs, fmt.Errorf("viewport must be positive, got %dx%d", s.ViewportWidth, s.ViewportHeight))
	}
	if s.Quality < 0 || s.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be in [0, 100], got %d", s.Quality))
	}
	if s.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", s.MaxRetries))
	}
	if s.RetryDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must not be negative, got %g", s.RetryDelaySeconds))
	}
	for name, value := range map[string]float64{
		"probe_timeout":      s.ProbeTimeoutSeconds,
		"navigation_timeout": s.NavigationTimeoutSeconds,
		"delivery_timeout":   s.DeliveryTimeoutSeconds,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %g", name, value))
		}
	}
	switch s.ContentEncoding {
	case EncodingIdentity, EncodingGzip, EncodingZstd:
	default:
		errs = append(errs, fmt.Errorf("content_encoding must be identity, gzip, or zstd, got %q", s.ContentEncoding))
	}

	return errors.Join(errs...)
}

func validateHTTPURL(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL, got %q", name, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s has no host: %q", name, value)
	}
	return nil
}
