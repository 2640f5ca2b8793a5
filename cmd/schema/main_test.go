package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSchemaDescribesConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "config.schema.json")
	if err := writeSchema(out, buildSchema()); err != nil {
		t.Fatalf("writeSchema: %v", err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err=%v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	var doc struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if doc.Title != "Battle Tanks Server Configuration" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	for _, section := range []string{"server", "game", "sync", "session", "logging"} {
		if _, ok := doc.Properties[section]; !ok {
			t.Fatalf("expected %q section in schema", section)
		}
	}
}
