package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

// run executes the root command against home. Flags on the shared command
// tree persist between runs, so tests pass every flag they rely on.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	err := Execute()
	return out.String(), err
}

func TestSessionCommands(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, home, "click", "12")
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if !strings.Contains(out, "+12 shuffles") || !strings.Contains(out, "Balance: 12") {
		t.Errorf("click output = %q", out)
	}

	out, err = run(t, home, "buy", "technique", "--count", "1")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !strings.Contains(out, "Bought 1 level of technique, now level 1") {
		t.Errorf("buy output = %q", out)
	}

	out, err = run(t, home, "status", "--json=true")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("status --json output %q: %v", out, err)
	}
	if snap.Balance != 2 || snap.PerActionRate != 2 {
		t.Errorf("snapshot = balance %v, per action %v; want 2, 2", snap.Balance, snap.PerActionRate)
	}

	out, err = run(t, home, "journal", "--limit", "5")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if !strings.Contains(out, "PURCHASE") || !strings.Contains(out, "technique") {
		t.Errorf("journal output = %q", out)
	}
	if !strings.Contains(out, "Spent per item") {
		t.Errorf("journal output missing spend totals: %q", out)
	}
}

func TestBuy_Failures(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, home, "buy", "technique", "--count", "1")
	if err == nil {
		t.Error("buy with no balance should fail")
	}
	if !strings.Contains(out, "Not enough shuffles") {
		t.Errorf("buy output = %q", out)
	}

	if _, err := run(t, home, "buy", "jokerWand", "--count", "1"); err == nil || !strings.Contains(err.Error(), "unknown item") {
		t.Errorf("buy unknown = %v", err)
	}
}

func TestReset_NeedsYes(t *testing.T) {
	home := t.TempDir()
	run(t, home, "click", "5")

	if _, err := run(t, home, "reset", "--yes=false"); err == nil {
		t.Error("reset without --yes should fail")
	}
	out, _ := run(t, home, "status", "--json=true")
	if !strings.Contains(out, `"balance": 5`) {
		t.Errorf("balance should survive an unconfirmed reset: %s", out)
	}

	if _, err := run(t, home, "reset", "--yes"); err != nil {
		t.Fatal(err)
	}
	out, _ = run(t, home, "status", "--json=true")
	if !strings.Contains(out, `"balance": 0`) {
		t.Errorf("balance after reset: %s", out)
	}
}

func TestCatalogAndConfig(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, home, "catalog", "--levels", "0")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"technique", "cardAI", "manual items", "generator items"} {
		if !strings.Contains(out, key) {
			t.Errorf("catalog output missing %s", key)
		}
	}
	if strings.Contains(out, "Contribution by level") {
		t.Error("contribution table should need --levels")
	}

	out, err = run(t, home, "catalog", "--levels", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Contribution by level (1..3)") || !strings.Contains(out, "L3") {
		t.Errorf("catalog --levels output = %q", out)
	}
	if _, err := run(t, home, "catalog", "--levels", "-1"); err == nil {
		t.Error("catalog --levels -1 should fail")
	}

	out, err = run(t, home, "config")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[engine]") || !strings.Contains(out, `backend = "sqlite"`) {
		t.Errorf("config output = %q", out)
	}
}

func TestSlots(t *testing.T) {
	home := t.TempDir()
	cfgPath := filepath.Join(home, "config.toml")
	os.WriteFile(cfgPath, []byte("[storage]\nslot = \"alt\"\n"), 0o644)
	if _, err := run(t, home, "click", "3"); err != nil {
		t.Fatal(err)
	}
	os.Remove(cfgPath)
	if _, err := run(t, home, "click", "1"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, home, "slots", "--delete", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "alt") || !strings.Contains(out, "default") {
		t.Errorf("slots output = %q", out)
	}

	if _, err := run(t, home, "slots", "--delete", "default"); err == nil {
		t.Error("deleting the active slot should fail")
	}
	out, err = run(t, home, "slots", "--delete", "alt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Deleted slot alt") {
		t.Errorf("slots --delete output = %q", out)
	}
	out, _ = run(t, home, "slots", "--delete", "")
	if strings.Contains(out, "alt") {
		t.Errorf("alt should be gone: %q", out)
	}
}

func TestCompleteItems(t *testing.T) {
	flagHome = t.TempDir()
	t.Cleanup(func() { flagHome = "" })

	keys, dir := completeItems(buyCmd, nil, "tech")
	if dir != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v", dir)
	}
	if len(keys) != 1 || keys[0] != "technique" {
		t.Errorf("completeItems(tech) = %v, want [technique]", keys)
	}
	if keys, _ := completeItems(buyCmd, []string{"technique"}, ""); len(keys) != 0 {
		t.Errorf("second argument completions = %v, want none", keys)
	}
}

func TestPoints(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{12.9, "12"},
		{123456.7, "123,456"},
	}
	for _, tt := range tests {
		if got := points(tt.in); got != tt.want {
			t.Errorf("points(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := points(2.5e9); !strings.HasPrefix(got, "2.5") || !strings.HasSuffix(got, "G") {
		t.Errorf("points(2.5e9) = %q, want SI form", got)
	}
}
