package savefile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

func TestLoad_Missing(t *testing.T) {
	s := New(t.TempDir(), "main")
	got, err := s.Load(context.Background())
	if err != nil || got != nil {
		t.Errorf("Load(missing) = %+v, %v; want nil, nil", got, err)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := New(dir, "")
	if filepath.Base(s.Path()) != "default.json" || s.Slot() != "default" {
		t.Errorf("Path() = %s, Slot() = %s; want default.json, default", s.Path(), s.Slot())
	}

	in := domain.SaveState{
		Balance:       10,
		TotalProduced: 25,
		SavedAt:       1_700_000_000_000,
		Items:         map[string]domain.SavedItem{"technique": {Level: 1}},
	}
	if err := s.Save(context.Background(), in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	out, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if out.Balance != 10 || out.TotalProduced != 25 || out.SavedAt != in.SavedAt || out.Items["technique"].Level != 1 {
		t.Errorf("Load() = %+v", out)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d files, want 1 (temp file left behind?)", len(entries))
	}
}

func TestSave_WireFormat(t *testing.T) {
	s := New(t.TempDir(), "main")
	s.Save(context.Background(), domain.SaveState{
		Balance: 1, TotalProduced: 2, SavedAt: 3,
		Items: map[string]domain.SavedItem{"cardAI": {Level: 4}},
	})
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"balance": 1`, `"totalProduced": 2`, `"savedAt": 3`, `"cardAI": {`, `"level": 4`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("snapshot missing %s:\n%s", want, data)
		}
	}
	if strings.Contains(string(data), "cost") {
		t.Error("costs must never be persisted")
	}
}

func TestLoad_ToleratesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	doc := `{"balance": 5, "totalProduced": 9, "savedAt": 0, "version": 3,
		"items": {"technique": {"level": 2, "cost": 22}}}`
	os.WriteFile(filepath.Join(dir, "old.json"), []byte(doc), 0o644)

	got, err := New(dir, "old").Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Items["technique"].Level != 2 {
		t.Errorf("Items = %+v", got.Items)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	tests := map[string]string{
		"truncated":  `{"balance": 5, "items": {`,
		"empty":      "  \n",
		"wrong type": `{"balance": "lots"}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			os.WriteFile(filepath.Join(dir, "save.json"), []byte(doc), 0o644)
			if _, err := New(dir, "save").Load(context.Background()); !errors.Is(err, domain.ErrCorruptSnapshot) {
				t.Errorf("Load() = %v, want ErrCorruptSnapshot", err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	s := New(t.TempDir(), "main")
	if err := s.Delete(); err != nil {
		t.Errorf("Delete(missing) = %v", err)
	}
	s.Save(context.Background(), domain.SaveState{})
	if err := s.Delete(); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Load(context.Background()); got != nil {
		t.Error("snapshot should be gone")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if got, err := List(ctx, filepath.Join(dir, "missing")); err != nil || len(got) != 0 {
		t.Errorf("List(missing dir) = %v, %v; want empty", got, err)
	}

	New(dir, "one").Save(ctx, domain.SaveState{SavedAt: 10})
	New(dir, "two").Save(ctx, domain.SaveState{SavedAt: 20})
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	got, err := List(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{"one": 10, "two": 20, "broken": 0}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("List()[%s] = %d, want %d", k, got[k], v)
		}
	}
}
