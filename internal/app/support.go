package app

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/zackham/voice-transcribe/internal/asr"
	"github.com/zackham/voice-transcribe/internal/config"
)

// newHTTPClient builds the upload client. A zero REQUEST_TIMEOUT means no
// client-side deadline.
func newHTTPClient(cfg config.Config) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
	}
}

// tempFileMaxAge is how old a RecordTemp_* file must be before cleanup
// removes it. Younger files may belong to an upload still in flight in
// another process sharing the temp dir.
const tempFileMaxAge = time.Hour

// cleanupOldTempFiles removes encoder leftovers from sessions that died
// before their own cleanup ran.
func cleanupOldTempFiles(dir string, maxAge time.Duration, log *zap.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug("cleanup skipped", zap.String("dir", dir), zap.Error(err))
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, asr.TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			log.Warn("cleanup failed", zap.String("path", path), zap.Error(err))
		} else {
			log.Debug("cleanup removed", zap.String("path", path))
		}
	}
}

// signalContext is cancelled on the first stop signal.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, stopSignals()...)
}
