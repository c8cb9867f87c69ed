package asr

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// cache decides what happens to a session's audio files once the upload is done.
type cache struct {
	dir  string
	keep bool
	log  *zap.Logger
	now  func() time.Time
}

// store moves the artifacts into the cache directory when keeping is enabled,
// and removes them otherwise. The response JSON is only kept for successful uploads.
func (c *cache) store(wavPath, outPath string, uploadOk bool, resBody []byte) {
	if !c.keep || c.dir == "" {
		for _, p := range []string{wavPath, outPath} {
			if p != "" {
				_ = os.Remove(p)
			}
		}
		return
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	base := fmt.Sprintf("audio-%s", now().Format("2006-01-02-15.04.05"))

	for _, p := range []string{wavPath, outPath} {
		if p == "" {
			continue
		}
		dst := filepath.Join(c.dir, base+filepath.Ext(p))
		if err := os.Rename(p, dst); err != nil {
			c.log.Warn("failed to move into cache", zap.String("dst", dst), zap.Error(err))
			_ = os.Remove(p)
		}
	}

	if uploadOk && len(resBody) > 0 {
		jsonPath := filepath.Join(c.dir, base+".json")
		if err := os.WriteFile(jsonPath, resBody, 0o644); err != nil {
			c.log.Warn("failed to write json", zap.String("path", jsonPath), zap.Error(err))
		}
	}
}
