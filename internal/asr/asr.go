// Package asr encodes captured audio and submits it to a speech-to-text backend.
package asr

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/zackham/voice-transcribe/internal/audio/ffmpeg"
	"github.com/zackham/voice-transcribe/internal/config"
	"github.com/zackham/voice-transcribe/internal/jsonpath"
	"github.com/zackham/voice-transcribe/internal/record"
)

var (
	// ErrNoAudio is returned when there is nothing to encode.
	ErrNoAudio = errors.New("no audio captured")
	// ErrNoText is returned when the response carries no usable text.
	ErrNoText = errors.New("no text in response")
)

// UploadError reports a non-success HTTP status from the backend.
type UploadError struct {
	StatusCode int
	Body       []byte
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, formatResponse(e.Body))
}

// uploader sends one audio file and returns the raw JSON response.
type uploader interface {
	upload(ctx context.Context, filePath string) ([]byte, error)
}

// Client performs ASR uploads.
type Client struct {
	cfg     config.Config
	up      uploader
	tempDir string
	log     *zap.Logger
	ffLog   *zap.Logger
	cache   *cache
}

// New creates a client for cfg.Backend. httpClient may be nil.
func New(cfg config.Config, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf("API endpoint is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}
	}
	c := &Client{
		cfg:     cfg,
		tempDir: config.TempDir(&cfg),
		log:     log,
		ffLog:   log.Named("ffmpeg"),
		cache:   &cache{dir: cfg.CacheDir, keep: cfg.KeepCache, log: log.Named("cache")},
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "http":
		up, err := newHTTPUploader(cfg, httpClient, log)
		if err != nil {
			return nil, err
		}
		c.up = up
	case "openai":
		c.up = newOpenAIUploader(cfg, httpClient, log)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return c, nil
}

// Transcribe encodes pcm, uploads it and returns the extracted text. Every
// failure, including an empty result, is returned as an error.
func (c *Client) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	wavPath, err := Encode(c.tempDir, pcm)
	if err != nil {
		return "", err
	}
	c.log.Debug("encoded", zap.String("path", wavPath), zap.Int("bytes", len(pcm)),
		zap.Duration("audio", time.Duration(len(pcm))*time.Second/record.BytesPerSecond))

	uploadPath := wavPath
	var outPath string
	if ext := config.ContainerExt(c.cfg.CONTAINER); ext != "wav" {
		outPath = tempPath(c.tempDir, ext)
		opts := ffmpeg.Options{Codec: c.cfg.CODECS, BitRateK: c.cfg.BIT_RATE, SampleRate: record.SampleRate}
		if err := ffmpeg.Convert(ctx, opts, wavPath, outPath, c.ffLog); err != nil {
			_ = os.Remove(wavPath)
			_ = os.Remove(outPath)
			return "", err
		}
		uploadPath = outPath
	}

	text, raw, err := c.TranscribeFile(ctx, uploadPath)
	c.cache.store(wavPath, outPath, err == nil, raw)
	return text, err
}

// TranscribeAudioFile normalizes an arbitrary audio file with ffmpeg into
// the configured container and uploads the result.
func (c *Client) TranscribeAudioFile(ctx context.Context, inPath string) (string, error) {
	if _, err := os.Stat(inPath); err != nil {
		return "", fmt.Errorf("file '%s' stat failed: %w", inPath, err)
	}
	outPath := tempPath(c.tempDir, config.ContainerExt(c.cfg.CONTAINER))
	opts := ffmpeg.Options{Codec: c.cfg.CODECS, BitRateK: c.cfg.BIT_RATE, SampleRate: record.SampleRate}
	if err := ffmpeg.Convert(ctx, opts, inPath, outPath, c.ffLog); err != nil {
		_ = os.Remove(outPath)
		return "", err
	}
	text, raw, err := c.TranscribeFile(ctx, outPath)
	c.cache.store("", outPath, err == nil, raw)
	return text, err
}

// WithFFmpegLogger replaces the logger used for transcode diagnostics.
func (c *Client) WithFFmpegLogger(log *zap.Logger) *Client {
	if log != nil {
		c.ffLog = log
	}
	return c
}

// TranscribeFile uploads an existing audio file and returns the extracted
// text along with the raw response.
func (c *Client) TranscribeFile(ctx context.Context, filePath string) (string, []byte, error) {
	start := time.Now()
	raw, err := c.up.upload(ctx, filePath)
	c.log.Debug("request finished", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	if err != nil {
		return "", raw, err
	}
	text, ok := jsonpath.ExtractText(raw, c.cfg.TEXTPath)
	if !ok || strings.TrimSpace(text) == "" {
		return "", raw, fmt.Errorf("%w: %s", ErrNoText, formatResponse(raw))
	}
	return text, raw, nil
}

type httpUploader struct {
	cfg        config.Config
	httpClient *http.Client
	extra      map[string]interface{}
	log        *zap.Logger
}

func newHTTPUploader(cfg config.Config, httpClient *http.Client, log *zap.Logger) (*httpUploader, error) {
	u := &httpUploader{cfg: cfg, httpClient: httpClient, log: log}
	if cfg.ExtraConfig != "" {
		u.extra = make(map[string]interface{})
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &u.extra); err != nil {
			return nil, fmt.Errorf("invalid extra-config JSON: %w", err)
		}
	}
	return u, nil
}

func (u *httpUploader) upload(ctx context.Context, filePath string) ([]byte, error) {
	u.log.Debug("uploading", zap.String("file", filePath), zap.String("endpoint", u.cfg.APIEndpoint))
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file error: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("create form file error: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy file error: %w", err)
	}

	fields := map[string]interface{}{"model": u.cfg.Model}
	if u.cfg.Language != "" {
		fields["language"] = u.cfg.Language
	}
	if u.cfg.Prompt != "" {
		fields["prompt"] = u.cfg.Prompt
	}
	for k, v := range u.extra {
		fields[k] = v
	}
	for k, v := range fields {
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case bool, float64, int:
			s = fmt.Sprintf("%v", val)
		default:
			if b, err := json.Marshal(val); err == nil {
				s = string(b)
			} else {
				s = fmt.Sprintf("%v", val)
			}
		}
		if err := writer.WriteField(k, s); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.APIEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request error: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.cfg.Token)
	}
	req.Header.Set("User-Agent", "voice-transcribe/1.0")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return respBody, &UploadError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	const maxBin = 256

	if utf8.Valid(b) {
		s := string(b)
		if len(s) > maxText {
			return fmt.Sprintf("%s... (truncated, total %d bytes)", s[:maxText], len(b))
		}
		return s
	}

	if len(b) > maxBin {
		return fmt.Sprintf("<binary %d bytes, prefix hex: %s...>", len(b), hex.EncodeToString(b[:maxBin]))
	}
	return fmt.Sprintf("<binary %d bytes, hex: %s>", len(b), hex.EncodeToString(b))
}
