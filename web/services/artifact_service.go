package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"floatchat/database"
	"floatchat/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArtifactURLPrefix is where artifacts are served from.
const ArtifactURLPrefix = "/artifacts/"

// ArtifactService writes dataset CSVs that clients download or plot.
type ArtifactService struct {
	dir    string
	logger *zap.Logger
}

func NewArtifactService(dir string, logger *zap.Logger) (*ArtifactService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &ArtifactService{dir: dir, logger: logger}, nil
}

// Dir returns the directory artifacts are written to.
func (s *ArtifactService) Dir() string {
	return s.dir
}

// URL returns the public path of an artifact.
func (s *ArtifactService) URL(name string) string {
	return ArtifactURLPrefix + name
}

// WriteCSV writes the full dataset and returns the artifact name. Files are
// written under a temporary name and renamed, so readers never see a partial file.
func (s *ArtifactService) WriteCSV(ctx context.Context, sessionID, label string, ds database.Dataset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prefix := utils.SanitizeFilename(label)
	if prefix == "" {
		prefix = "data"
	}
	name := fmt.Sprintf("%s_%s.csv", prefix, uuid.New().String())
	final := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(ds.Columns); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact header: %w", err)
	}
	record := make([]string, len(ds.Columns))
	for _, row := range ds.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = csvValue(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return "", fmt.Errorf("failed to write artifact row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to flush artifact: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}

	s.logger.Debug("Artifact written",
		zap.String("session_id", sessionID),
		zap.String("artifact", name),
		zap.Int("rows", ds.Len()))
	return name, nil
}

// RemoveOlderThan deletes artifacts last modified before cutoff.
func (s *ArtifactService) RemoveOlderThan(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list artifacts: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn("Failed to remove artifact", zap.String("artifact", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func csvValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
