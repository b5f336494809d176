package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "namespace_desc.json")
	data := []byte(`{"doc-num-1":"संविधान","doc-num-2":"criminal law"}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog) != 2 {
		t.Fatalf("catalog has %d entries, want 2", len(catalog))
	}
	if catalog["doc-num-1"] != "संविधान" {
		t.Errorf("doc-num-1 = %q", catalog["doc-num-1"])
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if catalog == nil || len(catalog) != 0 {
		t.Errorf("missing file must yield an empty catalog, got %v", catalog)
	}
}

func TestLoadCatalogBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Error("expected an error for malformed catalog JSON")
	}
}
