package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadCatalog reads the category catalog: a JSON object mapping each
// document-category namespace to a description of what its documents cover.
// A missing file is an empty catalog, which downstream treats as "no
// category selection".
func LoadCatalog(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading category catalog: %w", err)
	}
	catalog := map[string]string{}
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing category catalog %s: %w", path, err)
	}
	return catalog, nil
}
