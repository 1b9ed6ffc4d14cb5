package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar = "GEMINI_ASSISTANT_ENV"

	DefaultModel         = "gemini-1.5-flash"
	DefaultAPIBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultPort          = 12345
	DefaultLockPort      = 12346
	DefaultInstanceTag   = "gemini-assistant"
	DefaultAppIdentifier = "gemini-assistant"
	DefaultMaxFrameBytes = 1 << 20

	MatchModeTag       = "tag"
	MatchModeSubstring = "substring"

	// EnvTemplate is written when no .env exists yet.
	EnvTemplate = "GEMINI_API_KEY=\"YOUR_GEMINI_API_KEY_HERE\"\n"
	placeholder = "YOUR_GEMINI_API_KEY_HERE"
)

// LoadOptions carries command-line overrides; they take precedence over
// both the process environment and the .env file.
type LoadOptions struct {
	EnvFile     string
	InstanceTag string
	AppPath     string
}

type Config struct {
	EnvPath string

	APIKey     string
	Model      string
	APIBaseURL string
	APITimeout time.Duration

	TesseractPath string
	CaptureHotkey string
	ToggleHotkey  string

	EnableFileLogging bool
	LogFile           string

	// Single instance coordination.
	Port         int
	LockPort     int
	ProbeTimeout time.Duration

	// Launcher (native messaging host).
	InstanceTag           string
	MatchMode             string
	AppIdentifier         string
	AppPath               string
	AppArgs               []string
	LockTimeout           time.Duration
	SettleTimeout         time.Duration
	TerminatePollInterval time.Duration
	MaxFrameBytes         int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envPath := resolveEnvPath(opts.EnvFile)
	if envPath != "" {
		// Existing process environment wins over the file.
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		EnvPath:    envPath,
		APIKey:     resolveAPIKey(),
		Model:      getEnvWithDefault("GEMINI_MODEL", DefaultModel),
		APIBaseURL: strings.TrimRight(getEnvWithDefault("GEMINI_API_BASE_URL", DefaultAPIBaseURL), "/"),
		APITimeout: getDuration("GEMINI_API_TIMEOUT", 30*time.Second),

		TesseractPath: getEnvWithDefault("TESSERACT_PATH", "tesseract"),
		CaptureHotkey: getEnvWithDefault("CAPTURE_HOTKEY", "F12"),
		ToggleHotkey:  getEnvWithDefault("TOGGLE_HOTKEY", "F11"),

		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogFile:           os.Getenv("LOG_FILE"),

		Port:         getPort("SINGLE_INSTANCE_PORT", DefaultPort),
		LockPort:     getPort("LAUNCHER_LOCK_PORT", DefaultLockPort),
		ProbeTimeout: getDuration("PROBE_TIMEOUT", time.Second),

		InstanceTag:           getEnvWithDefault("INSTANCE_TAG", DefaultInstanceTag),
		MatchMode:             resolveMatchMode(os.Getenv("MATCH_MODE")),
		AppIdentifier:         getEnvWithDefault("APP_IDENTIFIER", DefaultAppIdentifier),
		AppPath:               getEnvWithDefault("APP_PATH", defaultAppPath()),
		AppArgs:               strings.Fields(os.Getenv("APP_ARGS")),
		LockTimeout:           getDuration("LAUNCHER_LOCK_TIMEOUT", 10*time.Second),
		SettleTimeout:         getDuration("TERMINATE_SETTLE_TIMEOUT", time.Second),
		TerminatePollInterval: getDuration("TERMINATE_POLL_INTERVAL", 100*time.Millisecond),
		MaxFrameBytes:         getInt("NATIVE_MAX_MESSAGE_BYTES", DefaultMaxFrameBytes),
	}

	if v := strings.TrimSpace(opts.InstanceTag); v != "" {
		cfg.InstanceTag = v
	}
	if v := strings.TrimSpace(opts.AppPath); v != "" {
		cfg.AppPath = v
	}

	return cfg, nil
}

// HasAPIKey reports whether a usable key is configured (the template
// placeholder does not count).
func (c *Config) HasAPIKey() bool {
	return c.APIKey != "" && c.APIKey != placeholder
}

// EnsureEnvTemplate creates path with a placeholder API key when it does
// not exist. It reports whether a file was created.
func EnsureEnvTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.WriteFile(path, []byte(EnvTemplate), 0600); err != nil {
		return false, err
	}
	return true, nil
}

// resolveEnvPath looks for, in order: an explicit override, .env next to the
// executable, the file named by GEMINI_ASSISTANT_ENV, .env in the working dir.
func resolveEnvPath(override string) string {
	if override != "" {
		return override
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		return ".env"
	}
	return ""
}

func resolveAPIKey() string {
	return strings.Trim(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), `"`)
}

func resolveMatchMode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case MatchModeSubstring, "cmdline":
		return MatchModeSubstring
	default:
		return MatchModeTag
	}
}

// defaultAppPath points at the desktop executable installed next to the
// running binary.
func defaultAppPath() string {
	name := "gemini-assistant"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	execPath, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(execPath), name)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getPort(key string, def int) int {
	n := getInt(key, def)
	if n > 65535 {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
