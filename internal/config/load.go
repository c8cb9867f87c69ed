package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. VOICE_TRANSCRIBE_MAX_DURATION.
const EnvPrefix = "VOICE_TRANSCRIBE"

// TokenKey is the key looked up in dotenv files.
const TokenKey = "OPENAI_API_KEY"

// ErrNoToken is returned when no API token can be found.
var ErrNoToken = errors.New(TokenKey + " not found")

// Load builds the config from defaults, the JSON settings file at path (if
// any) and VOICE_TRANSCRIBE_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return DefaultConfig(), fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// ResolvePath picks the settings file: the explicit path, else the per-user
// default when it exists, else none.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	p := DefaultConfigPath()
	if p == "" {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func setDefaults(v *viper.Viper, cfg Config) {
	rv := reflect.ValueOf(cfg)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		key := rt.Field(i).Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		v.SetDefault(key, rv.Field(i).Interface())
	}
}

// EnvFiles lists the dotenv files searched for the token, in order.
func EnvFiles(cfg Config) []string {
	primary := cfg.EnvFile
	if primary == "" {
		if dir := UserConfigDir(); dir != "" {
			primary = filepath.Join(dir, ".env")
		}
	}
	var out []string
	if primary != "" {
		out = append(out, primary)
	}
	return append(out, ".env")
}

// LoadToken returns the API token. An explicitly configured token wins, then
// OPENAI_API_KEY from the env files, then the process environment.
func LoadToken(cfg Config) (string, error) {
	if tok := unquote(cfg.Token); tok != "" {
		return tok, nil
	}
	for _, path := range EnvFiles(cfg) {
		tok, err := readEnvFile(path)
		if err == nil && tok != "" {
			return tok, nil
		}
	}
	if tok := unquote(os.Getenv(TokenKey)); tok != "" {
		return tok, nil
	}
	return "", ErrNoToken
}

func readEnvFile(path string) (string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return "", err
	}
	return unquote(v.GetString(TokenKey)), nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return s
}
