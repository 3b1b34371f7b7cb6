package team

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.yaml")
	if err := os.WriteFile(path, []byte(sampleSeed), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile returned error: %v", err)
	}
	if len(f.Teams) != 2 || f.Teams[1].Name != "beta" {
		t.Errorf("Teams = %+v", f.Teams)
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
