package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildDatasetKey returns the object key of one dataset file, e.g.
// "gtfs/seed-42/stop_times.txt".
func BuildDatasetKey(prefix, dataset, fileName string) (string, error) {
	if err := validatePathComponent(dataset, "dataset name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(fileName, "file name"); err != nil {
		return "", err
	}
	parts := []string{}
	for _, component := range strings.Split(strings.Trim(prefix, "/"), "/") {
		if component == "" {
			continue
		}
		if err := validatePathComponent(component, "prefix component"); err != nil {
			return "", err
		}
		parts = append(parts, component)
	}
	parts = append(parts, dataset, fileName)
	return path.Join(parts...), nil
}

// ValidateKey accepts a relative key made of plain file-name segments.
func ValidateKey(key string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	for _, segment := range strings.Split(key, "/") {
		if err := validatePathComponent(segment, "key segment"); err != nil {
			return fmt.Errorf("object key %q: %w", key, err)
		}
	}
	return nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
