// Package variables seeds the key/value store with secrets and settings from TOML files.
package variables

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/culefilo/internal/interfaces"
)

// VariableFile represents the structure of a variable in a TOML file
// Format:
// [google_places_api_key]
// value = "some-value"
type VariableFile struct {
	Value       string `toml:"value"`
	Description string `toml:"description"`
}

// Load reads variables.toml from dirPath, then every *.toml file in dirPath/variables.
// Missing files are not an error; unreadable ones are logged and skipped.
func Load(ctx context.Context, kv interfaces.KeyValueStorage, logger arbor.ILogger, dirPath string) error {
	files := []string{}

	variablesFile := filepath.Join(dirPath, "variables.toml")
	if _, err := os.Stat(variablesFile); err == nil {
		files = append(files, variablesFile)
	}

	variablesDir := filepath.Join(dirPath, "variables")
	if entries, err := os.ReadDir(variablesDir); err == nil {
		extra := []string{}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".toml") {
				extra = append(extra, filepath.Join(variablesDir, entry.Name()))
			}
		}
		sort.Strings(extra)
		files = append(files, extra...)
	}

	loaded, skipped, failed := 0, 0, 0
	for _, file := range files {
		l, s, f := loadFile(ctx, kv, logger, file)
		loaded += l
		skipped += s
		failed += f
	}

	logger.Debug().
		Str("dir", dirPath).
		Int("files", len(files)).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Int("errors", failed).
		Msg("Finished loading variables from files")

	return nil
}

func loadFile(ctx context.Context, kv interfaces.KeyValueStorage, logger arbor.ILogger, filePath string) (loaded, skipped, failed int) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read variable file")
		return 0, 0, 1
	}

	var variables map[string]VariableFile
	if err := toml.Unmarshal(content, &variables); err != nil {
		logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse variable file")
		return 0, 0, 1
	}

	fileName := filepath.Base(filePath)
	for key, variable := range variables {
		if variable.Value == "" {
			logger.Warn().Str("file", fileName).Str("key", key).Msg("Skipping variable with empty value")
			skipped++
			continue
		}

		if err := kv.Set(ctx, key, variable.Value); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to store variable")
			failed++
			continue
		}
		loaded++
	}

	return loaded, skipped, failed
}
