package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netrack/ppl/config"
)

const sample = `
entries:
  - name: supernet
    prefix: "fd00:4700::/24"
    port: 1
    next_hop: "01:02:03:04:05:06"
    priority: 1
  - name: specific
    prefix: "fd00:4702:0002:0002::/64"
    port: 2
    next_hop: "0a:0b:0c:0d:0e:0f"
    priority: 1
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entries.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesEntries(t *testing.T) {
	f, err := config.Load(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(f.Entries))
	}
	if f.Entries[0].Name != "supernet" || f.Entries[0].Port != 1 {
		t.Fatalf("unexpected first entry: %+v", f.Entries[0])
	}
}

func TestTableEntriesBuildsLpmKeys(t *testing.T) {
	f, err := config.Load(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	entries, err := f.TableEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if got := entries[0].Key[0].Lpm.Len; got != 24 {
		t.Fatalf("entries[0] prefix len = %d, want 24", got)
	}
	if got := entries[1].Key[0].Lpm.Len; got != 64 {
		t.Fatalf("entries[1] prefix len = %d, want 64", got)
	}
}

func TestTableEntriesRejectsBadPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("entries:\n  - name: x\n    prefix: not-a-cidr\n    port: 1\n    next_hop: \"01:02:03:04:05:06\"\n"), 0o644)

	f, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.TableEntries(); err == nil {
		t.Fatal("expected an error for a malformed prefix")
	}
}
