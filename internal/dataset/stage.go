package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/duckmesh/vtbench/internal/storage"
)

const objectScheme = "s3://"

// Stager resolves input paths to local files. Plain paths are returned as-is;
// s3:// keys are fetched from Store into WorkDir first, so that query-time
// reads never touch the network.
type Stager struct {
	Store   storage.DatasetStore
	WorkDir string
	Logger  *slog.Logger
}

func IsObjectPath(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), objectScheme)
}

func (s *Stager) Stage(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("input path is required")
	}
	if !IsObjectPath(raw) {
		return raw, nil
	}
	if s.Store == nil {
		return "", fmt.Errorf("object store is required for %q", raw)
	}

	key := strings.TrimPrefix(raw, objectScheme)
	workDir := s.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	localPath := filepath.Join(workDir, sanitizeFileComponent(path.Base(key)))

	start := time.Now()
	info, err := s.Store.Fetch(ctx, key, localPath)
	if err != nil {
		return "", fmt.Errorf("stage %q: %w", raw, err)
	}
	if s.Logger != nil {
		s.Logger.Info("staged input file",
			slog.String("key", info.Key),
			slog.String("path", localPath),
			slog.Int64("bytes", info.Size),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return localPath, nil
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" || value == "." {
		return "input.csv"
	}
	return value
}
