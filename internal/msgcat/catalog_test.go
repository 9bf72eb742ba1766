package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("error.illegal_move", map[string]any{"Move": "e2e5"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Illegal move e2e5." {
		t.Fatalf("unexpected text %q", got)
	}
	if _, err := c.Render("error.illegal_move", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("fallback = %q", got)
	}
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("error:\n  invalid_turn: \"Wait for your turn\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("error.invalid_turn", nil); got != "Wait for your turn" {
		t.Fatalf("override not applied: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("error:\n  invalid_turn: dup\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
