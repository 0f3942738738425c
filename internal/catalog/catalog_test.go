package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.json")
	data := `[
		{"topic": "Animals", "options": ["Cat", "", "Dog"]},
		{"topic": "Silence", "options": []}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("want 2 topics, got %d", cat.Len())
	}
	if got := cat.Topic(0); got.Name != "Animals" || len(got.Options) != 2 {
		t.Fatalf("blank options should be dropped: %+v", got)
	}
	if got := cat.Topic(1); len(got.Options) != 0 {
		t.Fatalf("empty options list is valid: %+v", got)
	}
	if got := cat.Topic(99); got.Name != "Topic" {
		t.Fatalf("out of range should fall back: %+v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
