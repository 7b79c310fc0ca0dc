// Package data persists generated artifacts and reads them back.
package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"publicresolvers/render"
)

// LoadFromJSON reads a JSON file and unmarshals it into T.
func LoadFromJSON[T any](filePath string) (T, error) {
	var result T
	data, err := os.ReadFile(filePath)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("data: parse %s: %w", filePath, err)
	}
	return result, nil
}

// ErrUnsafePath is returned for an artifact path that would leave the output
// directory.
var ErrUnsafePath = errors.New("data: artifact path escapes output directory")

// WriteArtifacts writes every artifact below baseDir, creating parent
// directories as needed. Files are replaced one by one; a failure part way
// leaves the earlier files written.
func WriteArtifacts(baseDir string, artifacts []render.Artifact) error {
	for _, a := range artifacts {
		if err := checkArtifactPath(a.Path); err != nil {
			return err
		}
	}
	for _, a := range artifacts {
		path := ArtifactPath(baseDir, a)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("data: create directory for %s: %w", a.Path, err)
		}
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("data: write %s: %w", a.Path, err)
		}
	}
	return nil
}

// ArtifactPath is the on-disk location of a below baseDir.
func ArtifactPath(baseDir string, a render.Artifact) string {
	return filepath.Join(baseDir, filepath.FromSlash(a.Path))
}

// checkArtifactPath rejects absolute paths and paths containing "..".
func checkArtifactPath(p string) error {
	if p == "" || !filepath.IsLocal(filepath.FromSlash(p)) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	return nil
}
