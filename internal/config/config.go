package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// AppName names the per-user config and state directories.
const AppName = "voice-transcribe"

// Config holds configurable parameters.
type Config struct {
	APIEndpoint    string `json:"API_ENDPOINT" mapstructure:"API_ENDPOINT"`
	Token          string `json:"TOKEN" mapstructure:"TOKEN"`
	Backend        string `json:"BACKEND" mapstructure:"BACKEND"`
	Model          string `json:"MODEL" mapstructure:"MODEL"`
	Language       string `json:"LANGUAGE" mapstructure:"LANGUAGE"`
	Prompt         string `json:"PROMPT" mapstructure:"PROMPT"`
	TEXTPath       string `json:"TEXT_PATH" mapstructure:"TEXT_PATH"`
	ExtraConfig    string `json:"ExtraConfig" mapstructure:"ExtraConfig"`
	EnvFile        string `json:"ENV_FILE" mapstructure:"ENV_FILE"`
	CaptureDevice  string `json:"CAPTURE_DEVICE" mapstructure:"CAPTURE_DEVICE"`
	MaxDuration    int    `json:"MAX_DURATION" mapstructure:"MAX_DURATION"`
	MaxBufferMB    int    `json:"MAX_BUFFER_MB" mapstructure:"MAX_BUFFER_MB"`
	PIDFile        string `json:"PID_FILE" mapstructure:"PID_FILE"`
	StatusFile     string `json:"STATUS_FILE" mapstructure:"STATUS_FILE"`
	ClipboardCmd   string `json:"CLIPBOARD_CMD" mapstructure:"CLIPBOARD_CMD"`
	VisualizerCmd  string `json:"VISUALIZER_CMD" mapstructure:"VISUALIZER_CMD"`
	CODECS         string `json:"CODECS" mapstructure:"CODECS"`
	CONTAINER      string `json:"CONTAINER" mapstructure:"CONTAINER"`
	BIT_RATE       int    `json:"BIT_RATE" mapstructure:"BIT_RATE"`
	RequestTimeout int    `json:"REQUEST_TIMEOUT" mapstructure:"REQUEST_TIMEOUT"`
	EnableHTTP2    bool   `json:"ENABLE_HTTP2" mapstructure:"ENABLE_HTTP2"`
	VerifySSL      bool   `json:"VERIFY_SSL" mapstructure:"VERIFY_SSL"`
	CacheDir       string `json:"CACHE_DIR" mapstructure:"CACHE_DIR"`
	KeepCache      bool   `json:"KEEP_CACHE" mapstructure:"KEEP_CACHE"`
	Notification   bool   `json:"NOTIFICATION" mapstructure:"NOTIFICATION"`
	LogFile        string `json:"LOG_FILE" mapstructure:"LOG_FILE"`
	FFMPEG_DEBUG   bool   `json:"FFMPEG_DEBUG" mapstructure:"FFMPEG_DEBUG"`
	RECORD_DEBUG   bool   `json:"RECORD_DEBUG" mapstructure:"RECORD_DEBUG"`
	UPLOAD_DEBUG   bool   `json:"UPLOAD_DEBUG" mapstructure:"UPLOAD_DEBUG"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		APIEndpoint:    "https://api.openai.com/v1/audio/transcriptions",
		Token:          "",
		Backend:        "http",
		Model:          "whisper-1",
		Language:       "",
		Prompt:         "",
		TEXTPath:       "text",
		ExtraConfig:    "",
		EnvFile:        "",
		CaptureDevice:  "hw:0,0",
		MaxDuration:    300,
		MaxBufferMB:    0,
		PIDFile:        "/tmp/voice_transcribe.pid",
		StatusFile:     "/tmp/voice_transcribe.status",
		ClipboardCmd:   "",
		VisualizerCmd:  "",
		CODECS:         "pcm",
		CONTAINER:      "wav",
		BIT_RATE:       64,
		RequestTimeout: 0,
		EnableHTTP2:    true,
		VerifySSL:      true,
		CacheDir:       "",
		KeepCache:      false,
		Notification:   false,
		LogFile:        "",
		FFMPEG_DEBUG:   false,
		RECORD_DEBUG:   false,
		UPLOAD_DEBUG:   false,
	}
}

// SaveDefault writes a default config JSON to the provided path.
func SaveDefault(path string) error {
	cfg := DefaultConfig()
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate verifies config fields and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.APIEndpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API_ENDPOINT: %q", cfg.APIEndpoint)
	}
	switch strings.ToLower(cfg.Backend) {
	case "http", "openai":
	default:
		return fmt.Errorf("invalid BACKEND: %s (allowed: http, openai)", cfg.Backend)
	}
	if cfg.Model == "" {
		return fmt.Errorf("MODEL must not be empty")
	}
	if cfg.ExtraConfig != "" {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &m); err != nil {
			return fmt.Errorf("invalid ExtraConfig JSON: %w", err)
		}
	}
	if cfg.MaxDuration <= 0 {
		return fmt.Errorf("invalid MAX_DURATION: %d (must be > 0)", cfg.MaxDuration)
	}
	if cfg.MaxBufferMB < 0 {
		return fmt.Errorf("invalid MAX_BUFFER_MB: %d (must be >= 0)", cfg.MaxBufferMB)
	}
	if cfg.PIDFile == "" || cfg.StatusFile == "" {
		return fmt.Errorf("PID_FILE and STATUS_FILE must be set")
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: %d (must be >= 0)", cfg.RequestTimeout)
	}
	if cfg.BIT_RATE <= 0 {
		return fmt.Errorf("invalid BIT_RATE: %d (must be > 0)", cfg.BIT_RATE)
	}
	if !strings.EqualFold(cfg.CONTAINER, "wav") {
		if _, ok := codecs[strings.ToLower(cfg.CODECS)]; !ok {
			return fmt.Errorf("invalid CODECS: %s (allowed: PCM, OPUS, MP3, FLAC, AAC, VORBIS)", cfg.CODECS)
		}
		if _, ok := containers[strings.ToLower(cfg.CONTAINER)]; !ok {
			return fmt.Errorf("invalid CONTAINER: %s (allowed: WAV, OGG, MP3, FLAC, M4A, WEBM)", cfg.CONTAINER)
		}
	}
	return nil
}

var codecs = map[string]struct{}{
	"pcm": {}, "opus": {}, "libopus": {}, "mp3": {}, "flac": {}, "aac": {}, "vorbis": {}, "libvorbis": {},
}

var containers = map[string]struct{}{
	"wav": {}, "ogg": {}, "oga": {}, "mp3": {}, "flac": {}, "m4a": {}, "webm": {},
}

// ContainerExt maps container names to file extensions (lowercase).
func ContainerExt(container string) string {
	c := strings.ToLower(container)
	if c == "" {
		return "wav"
	}
	return c
}

// InitCacheDir validates/creates the configured cache directory.
// It mutates cfg.CacheDir to an absolute path or clears it on failure.
func InitCacheDir(cfg *Config) error {
	if cfg.CacheDir == "" {
		return nil
	}
	abs, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		cfg.CacheDir = ""
		return fmt.Errorf("cache-dir path invalid: %w", err)
	}
	info, err := os.Stat(abs)
	if err == nil && !info.IsDir() {
		cfg.CacheDir = ""
		return fmt.Errorf("cache-dir '%s' exists but is not a directory", abs)
	}
	if err != nil {
		if !os.IsNotExist(err) {
			cfg.CacheDir = ""
			return fmt.Errorf("cannot access cache-dir '%s': %w", abs, err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			cfg.CacheDir = ""
			return fmt.Errorf("cannot create cache-dir '%s': %w", abs, err)
		}
	}
	cfg.CacheDir = abs
	return nil
}

// TempDir returns the directory to use for temporary files.
func TempDir(cfg *Config) string {
	if cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return os.TempDir()
}

// UserConfigDir returns $XDG_CONFIG_HOME/voice-transcribe or its platform equivalent.
func UserConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName)
}

// DefaultConfigPath is the settings file read when --config is not given.
func DefaultConfigPath() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.json")
}

// DefaultLogPath is $XDG_STATE_HOME/voice-transcribe/voice-transcribe.log.
func DefaultLogPath() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), AppName+".log")
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, AppName, AppName+".log")
}
