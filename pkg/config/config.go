package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/agentbroker/pkg/types"
)

// SigintMode selects how the Signal Manager (C5) reacts to an interrupt
// signal (§4.5).
type SigintMode string

const (
	SigintCancel        SigintMode = "cancel"
	SigintExit          SigintMode = "exit"
	SigintCancelThenExit SigintMode = "cancel_then_exit"
)

// ParseSigintMode parses a mode string, defaulting to SigintCancel for any
// unrecognised value (mirrors SigintMode.from_string's fallback).
func ParseSigintMode(value string) SigintMode {
	switch SigintMode(strings.ToLower(strings.TrimSpace(value))) {
	case SigintExit:
		return SigintExit
	case SigintCancelThenExit:
		return SigintCancelThenExit
	default:
		return SigintCancel
	}
}

const (
	defaultDoubleTapWindow = time.Second
	minDoubleTapWindow     = 100 * time.Millisecond
	maxDoubleTapWindow     = 10 * time.Second
)

// Config is the broker's immutable process-wide configuration. The zero
// value is not meaningful; build one with Load.
type Config struct {
	// Tools is the set of agent kinds exposed as tools. Nil means
	// every known agent kind is allowed; a non-nil empty set allows
	// none (§6 "enable/disable tool lists").
	Tools map[types.AgentKind]bool

	DashboardEnabled bool
	DashboardDetail  bool
	DashboardKeep    bool
	DashboardHost    string
	DashboardPort    int

	Debug    bool
	LogDebug bool
	LogFile  string

	SigintMode      SigintMode
	DoubleTapWindow time.Duration
}

// IsToolAllowed reports whether kind is enabled under the current
// enable/disable configuration.
func (c Config) IsToolAllowed(kind types.AgentKind) bool {
	if c.Tools == nil {
		return true
	}
	return c.Tools[kind]
}

// file is the optional on-disk overlay shape, applied before environment
// overrides (SPEC_FULL.md AMBIENT STACK: gopkg.in/yaml.v3, matching
// warren's manager config file-plus-env layering).
type file struct {
	EnableTools     string `yaml:"enable_tools"`
	DisableTools    string `yaml:"disable_tools"`
	DashboardEnabled *bool  `yaml:"dashboard_enabled"`
	DashboardDetail  *bool  `yaml:"dashboard_detail"`
	DashboardKeep    *bool  `yaml:"dashboard_keep"`
	DashboardHost    string `yaml:"dashboard_host"`
	DashboardPort    int    `yaml:"dashboard_port"`
	Debug            *bool  `yaml:"debug"`
	LogDebug         *bool  `yaml:"log_debug"`
	SigintMode       string `yaml:"sigint_mode"`
	DoubleTapWindow  string `yaml:"sigint_double_tap_window"`
}

// Load builds a Config from, in increasing precedence: built-in
// defaults, the YAML file at configPath (skipped if configPath is
// empty), then environment variables (§6's table, prefixed
// AGENTBROKER_).
func Load(configPath string) (Config, error) {
	cfg := Config{
		DashboardEnabled: true,
		DashboardHost:    "127.0.0.1",
		DashboardPort:    0,
		SigintMode:       SigintCancel,
		DoubleTapWindow:  defaultDoubleTapWindow,
	}

	var f file
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
		applyFile(&cfg, f)
	}

	applyEnv(&cfg)

	cfg.Tools = computeEnabledTools(envOr("AGENTBROKER_ENABLE_TOOLS", f.EnableTools), envOr("AGENTBROKER_DISABLE_TOOLS", f.DisableTools))

	if cfg.LogDebug && cfg.LogFile == "" {
		logFile, err := defaultLogFilePath()
		if err != nil {
			return Config{}, err
		}
		cfg.LogFile = logFile
	}

	return cfg, nil
}

func applyFile(cfg *Config, f file) {
	if f.DashboardEnabled != nil {
		cfg.DashboardEnabled = *f.DashboardEnabled
	}
	if f.DashboardDetail != nil {
		cfg.DashboardDetail = *f.DashboardDetail
	}
	if f.DashboardKeep != nil {
		cfg.DashboardKeep = *f.DashboardKeep
	}
	if f.DashboardHost != "" {
		cfg.DashboardHost = f.DashboardHost
	}
	if f.DashboardPort != 0 {
		cfg.DashboardPort = f.DashboardPort
	}
	if f.Debug != nil {
		cfg.Debug = *f.Debug
	}
	if f.LogDebug != nil {
		cfg.LogDebug = *f.LogDebug
	}
	if f.SigintMode != "" {
		cfg.SigintMode = ParseSigintMode(f.SigintMode)
	}
	if f.DoubleTapWindow != "" {
		cfg.DoubleTapWindow = parseDoubleTapWindow(f.DoubleTapWindow)
	}
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("AGENTBROKER_DASHBOARD_ENABLED"); ok {
		cfg.DashboardEnabled = parseBool(v, cfg.DashboardEnabled)
	}
	if v, ok := os.LookupEnv("AGENTBROKER_DASHBOARD_DETAIL"); ok {
		cfg.DashboardDetail = parseBool(v, cfg.DashboardDetail)
	}
	if v, ok := os.LookupEnv("AGENTBROKER_DASHBOARD_KEEP"); ok {
		cfg.DashboardKeep = parseBool(v, cfg.DashboardKeep)
	}
	if v, ok := os.LookupEnv("AGENTBROKER_DASHBOARD_HOST"); ok && v != "" {
		cfg.DashboardHost = v
	}
	if v, ok := os.LookupEnv("AGENTBROKER_DASHBOARD_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.DashboardPort = port
		}
	}
	if v, ok := os.LookupEnv("AGENTBROKER_DEBUG"); ok {
		cfg.Debug = parseBool(v, cfg.Debug)
	}
	if v, ok := os.LookupEnv("AGENTBROKER_LOG_DEBUG"); ok {
		cfg.LogDebug = parseBool(v, cfg.LogDebug)
	}
	if v, ok := os.LookupEnv("AGENTBROKER_SIGINT_MODE"); ok {
		cfg.SigintMode = ParseSigintMode(v)
	}
	if v, ok := os.LookupEnv("AGENTBROKER_SIGINT_DOUBLE_TAP_WINDOW"); ok {
		cfg.DoubleTapWindow = parseDoubleTapWindow(v)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

// parseDoubleTapWindow clamps to [0.1, 10] seconds, defaulting to 1s on
// a malformed value (§4.5).
func parseDoubleTapWindow(value string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultDoubleTapWindow
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < minDoubleTapWindow {
		return minDoubleTapWindow
	}
	if d > maxDoubleTapWindow {
		return maxDoubleTapWindow
	}
	return d
}

// computeEnabledTools parses the comma-separated, case-insensitive
// enable/disable lists and returns enable minus disable. An empty
// enable list (the common case) means "every known agent kind".
func computeEnabledTools(enable, disable string) map[types.AgentKind]bool {
	enabled := parseToolList(enable)
	disabled := parseToolList(disable)

	if len(enabled) == 0 {
		enabled = make(map[types.AgentKind]bool, len(types.AgentKinds()))
		for _, k := range types.AgentKinds() {
			enabled[k] = true
		}
	}
	for k := range disabled {
		delete(enabled, k)
	}
	return enabled
}

func parseToolList(value string) map[types.AgentKind]bool {
	out := make(map[types.AgentKind]bool)
	if strings.TrimSpace(value) == "" {
		return out
	}
	for _, item := range strings.Split(value, ",") {
		kind := types.AgentKind(strings.ToLower(strings.TrimSpace(item)))
		if kind.Valid() {
			out[kind] = true
		}
	}
	return out
}

func defaultLogFilePath() (string, error) {
	dir := filepath.Join(os.TempDir(), "agentbroker")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create log dir: %w", err)
	}
	name := fmt.Sprintf("agentbroker_debug_%s.log", time.Now().Format("20060102_150405"))
	return filepath.Join(dir, name), nil
}
