package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNormalizesNestedMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	body := `
model:
  codebooks: 4
  cardinality: 2048
optim:
  lr: 0.0001
  betas: [0.9, 0.95]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	model, ok := cfg["model"].(map[string]any)
	if !ok {
		t.Fatalf("model section has type %T, want map[string]any", cfg["model"])
	}
	if model["codebooks"] != 4 {
		t.Fatalf("codebooks = %v, want 4", model["codebooks"])
	}
	if !IsJSONable(cfg) {
		t.Fatal("loaded config should be JSON-serializable")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIsJSONable(t *testing.T) {
	if !IsJSONable(map[string]any{"a": 1, "b": []any{"x", 2.5}}) {
		t.Fatal("plain maps should be JSON-able")
	}
	if IsJSONable(make(chan int)) {
		t.Fatal("channels are not JSON-able")
	}
}

func TestProduct(t *testing.T) {
	got := Product(map[string][]any{
		"lr":     {0.1, 0.01},
		"chunks": {2, 4, 8},
	})
	if len(got) != 6 {
		t.Fatalf("got %d combinations, want 6", len(got))
	}
	// Sorted keys with the last varying fastest: chunks is the slow axis.
	if got[0]["chunks"] != 2 || got[0]["lr"] != 0.1 {
		t.Fatalf("unexpected first combination %v", got[0])
	}
	if got[1]["chunks"] != 2 || got[1]["lr"] != 0.01 {
		t.Fatalf("unexpected second combination %v", got[1])
	}
	if got[5]["chunks"] != 8 || got[5]["lr"] != 0.01 {
		t.Fatalf("unexpected last combination %v", got[5])
	}
}

func TestProductEmpty(t *testing.T) {
	got := Product(nil)
	if len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("empty grid should yield one empty assignment, got %v", got)
	}
}
