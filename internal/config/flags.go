package config

import (
	"github.com/spf13/pflag"
)

// FlagValues holds the values bound to a flag set. Only flags the user
// actually set are applied; pflag tracks that in Flag.Changed.
type FlagValues struct {
	fs *pflag.FlagSet
	v  Config
}

// flagAppliers copies one flag's value into the config, keyed by flag name.
var flagAppliers = map[string]func(dst, src *Config){
	"api-endpoint":    func(d, s *Config) { d.APIEndpoint = s.APIEndpoint },
	"token":           func(d, s *Config) { d.Token = s.Token },
	"backend":         func(d, s *Config) { d.Backend = s.Backend },
	"model":           func(d, s *Config) { d.Model = s.Model },
	"language":        func(d, s *Config) { d.Language = s.Language },
	"prompt":          func(d, s *Config) { d.Prompt = s.Prompt },
	"text-path":       func(d, s *Config) { d.TEXTPath = s.TEXTPath },
	"extra-config":    func(d, s *Config) { d.ExtraConfig = s.ExtraConfig },
	"env-file":        func(d, s *Config) { d.EnvFile = s.EnvFile },
	"device":          func(d, s *Config) { d.CaptureDevice = s.CaptureDevice },
	"max-duration":    func(d, s *Config) { d.MaxDuration = s.MaxDuration },
	"max-buffer-mb":   func(d, s *Config) { d.MaxBufferMB = s.MaxBufferMB },
	"pid-file":        func(d, s *Config) { d.PIDFile = s.PIDFile },
	"status-file":     func(d, s *Config) { d.StatusFile = s.StatusFile },
	"clipboard-cmd":   func(d, s *Config) { d.ClipboardCmd = s.ClipboardCmd },
	"visualizer-cmd":  func(d, s *Config) { d.VisualizerCmd = s.VisualizerCmd },
	"codecs":          func(d, s *Config) { d.CODECS = s.CODECS },
	"container":       func(d, s *Config) { d.CONTAINER = s.CONTAINER },
	"bit-rate":        func(d, s *Config) { d.BIT_RATE = s.BIT_RATE },
	"request-timeout": func(d, s *Config) { d.RequestTimeout = s.RequestTimeout },
	"enable-http2":    func(d, s *Config) { d.EnableHTTP2 = s.EnableHTTP2 },
	"verify-ssl":      func(d, s *Config) { d.VerifySSL = s.VerifySSL },
	"cache-dir":       func(d, s *Config) { d.CacheDir = s.CacheDir },
	"keep-cache":      func(d, s *Config) { d.KeepCache = s.KeepCache },
	"notification":    func(d, s *Config) { d.Notification = s.Notification },
	"log-file":        func(d, s *Config) { d.LogFile = s.LogFile },
	"ffmpeg-debug":    func(d, s *Config) { d.FFMPEG_DEBUG = s.FFMPEG_DEBUG },
	"record-debug":    func(d, s *Config) { d.RECORD_DEBUG = s.RECORD_DEBUG },
	"upload-debug":    func(d, s *Config) { d.UPLOAD_DEBUG = s.UPLOAD_DEBUG },
}

// BindFlags registers all config flags on fs. Defaults shown in help come
// from DefaultConfig.
func BindFlags(fs *pflag.FlagSet) *FlagValues {
	def := DefaultConfig()
	fv := &FlagValues{fs: fs}
	v := &fv.v

	fs.StringVar(&v.APIEndpoint, "api-endpoint", def.APIEndpoint, "transcription endpoint URL")
	fs.StringVar(&v.Token, "token", "", "API token (overrides "+TokenKey+" from env files)")
	fs.StringVar(&v.Backend, "backend", def.Backend, "upload backend: http or openai")
	fs.StringVar(&v.Model, "model", def.Model, "model")
	fs.StringVar(&v.Language, "language", "", "language")
	fs.StringVar(&v.Prompt, "prompt", "", "prompt")
	fs.StringVar(&v.TEXTPath, "text-path", def.TEXTPath, "JSON path to extract text")
	fs.StringVar(&v.ExtraConfig, "extra-config", "", "extra JSON config to merge into request payload")
	fs.StringVar(&v.EnvFile, "env-file", "", "dotenv file holding "+TokenKey)

	fs.StringVar(&v.CaptureDevice, "device", def.CaptureDevice, "preferred capture device name (falls back to the default input)")
	fs.IntVar(&v.MaxDuration, "max-duration", def.MaxDuration, "maximum recording length in seconds")
	fs.IntVar(&v.MaxBufferMB, "max-buffer-mb", def.MaxBufferMB, "cap on buffered audio in MiB (0 = unbounded)")
	fs.StringVar(&v.PIDFile, "pid-file", def.PIDFile, "pid file path")
	fs.StringVar(&v.StatusFile, "status-file", def.StatusFile, "status file path")
	fs.StringVar(&v.ClipboardCmd, "clipboard-cmd", "", "command receiving the text on stdin (e.g. wl-copy)")
	fs.StringVar(&v.VisualizerCmd, "visualizer-cmd", "", "command started alongside the recording")

	fs.StringVar(&v.CODECS, "codecs", def.CODECS, "audio codec when transcoding (e.g. OPUS, MP3, FLAC)")
	fs.StringVar(&v.CONTAINER, "container", def.CONTAINER, "upload container; anything but WAV is produced with ffmpeg")
	fs.IntVar(&v.BIT_RATE, "bit-rate", def.BIT_RATE, "bit rate (kbps)")

	fs.IntVar(&v.RequestTimeout, "request-timeout", def.RequestTimeout, "request timeout seconds (0 = none)")
	fs.BoolVar(&v.EnableHTTP2, "enable-http2", def.EnableHTTP2, "enable HTTP/2")
	fs.BoolVar(&v.VerifySSL, "verify-ssl", def.VerifySSL, "verify TLS certificates")

	fs.StringVar(&v.CacheDir, "cache-dir", "", "cache directory")
	fs.BoolVar(&v.KeepCache, "keep-cache", def.KeepCache, "keep cache files")

	fs.BoolVar(&v.Notification, "notification", def.Notification, "enable notifications")
	fs.StringVar(&v.LogFile, "log-file", "", "daemon log file")
	fs.BoolVar(&v.FFMPEG_DEBUG, "ffmpeg-debug", false, "enable ffmpeg debug output")
	fs.BoolVar(&v.RECORD_DEBUG, "record-debug", false, "enable record debug output")
	fs.BoolVar(&v.UPLOAD_DEBUG, "upload-debug", false, "enable upload debug output")

	return fv
}

// ApplyFlags copies the flags that were set on the command line into cfg.
func ApplyFlags(cfg *Config, fv *FlagValues) {
	fv.fs.VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if apply, ok := flagAppliers[f.Name]; ok {
			apply(cfg, &fv.v)
		}
	})
}
