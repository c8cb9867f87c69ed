package asr

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/zackham/voice-transcribe/internal/config"
)

// openaiUploader goes through the official SDK. ExtraConfig is not applied.
type openaiUploader struct {
	cfg    config.Config
	client openai.Client
	log    *zap.Logger
}

func newOpenAIUploader(cfg config.Config, httpClient *http.Client, log *zap.Logger) *openaiUploader {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Token),
		option.WithBaseURL(BaseURL(cfg.APIEndpoint)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	return &openaiUploader{cfg: cfg, client: openai.NewClient(opts...), log: log}
}

// BaseURL strips the transcription route from an endpoint URL.
func BaseURL(endpoint string) string {
	base := strings.TrimSuffix(strings.TrimRight(endpoint, "/"), "audio/transcriptions")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (u *openaiUploader) upload(ctx context.Context, filePath string) ([]byte, error) {
	u.log.Debug("uploading via sdk", zap.String("file", filePath), zap.String("model", u.cfg.Model))
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file error: %w", err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(f, filepath.Base(filePath), contentType),
		Model: openai.AudioModel(u.cfg.Model),
	}
	if u.cfg.Language != "" {
		params.Language = openai.String(u.cfg.Language)
	}
	if u.cfg.Prompt != "" {
		params.Prompt = openai.String(u.cfg.Prompt)
	}

	tr, err := u.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return []byte(apiErr.RawJSON()), &UploadError{StatusCode: apiErr.StatusCode, Body: []byte(apiErr.RawJSON())}
		}
		return nil, fmt.Errorf("request error: %w", err)
	}
	return []byte(tr.RawJSON()), nil
}
