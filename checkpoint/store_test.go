package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tasknetics/taskcore/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)

	v, err := s.Save("task-1", []byte(`{"step":3}`))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if v != 1 {
		t.Errorf("first version = %d, want 1", v)
	}

	payload, version, err := s.Load("task-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if version != 1 || string(payload) != `{"step":3}` {
		t.Errorf("Load() = %q v%d", payload, version)
	}
}

func TestSave_VersionsIncrement(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		v, err := s.Save("task-1", []byte(`{"step":1}`))
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		if v != uint64(i) {
			t.Errorf("version = %d, want %d", v, i)
		}
	}

	latest, err := s.Latest("task-1")
	if err != nil || latest != 3 {
		t.Errorf("Latest() = %d, %v", latest, err)
	}
}

func TestLoad_Missing(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Load("ghost")
	if errors.GetCode(err) != errors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestLoad_CorruptPrimaryFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := s.Save("task-1", []byte(`{"step":1}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.Save("task-1", []byte(`{"step":2}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Break the stored checksum so the primary fails verification.
	primary := filepath.Join(dir, "task-1.checkpoint.json")
	data, err := os.ReadFile(primary)
	if err != nil {
		t.Fatalf("read primary: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode primary: %v", err)
	}
	env.Checksum = "deadbeef"
	tampered, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("encode tampered: %v", err)
	}
	if err := os.WriteFile(primary, tampered, 0o644); err != nil {
		t.Fatalf("tamper primary: %v", err)
	}

	payload, version, err := s.Load("task-1")
	if err != nil {
		t.Fatalf("Load should recover from backup: %v", err)
	}
	if version != 1 || string(payload) != `{"step":1}` {
		t.Errorf("backup Load() = %q v%d, want step 1 v1", payload, version)
	}
}

func TestLoad_BothCopiesBad(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := s.Save("task-1", []byte(`{"step":1}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.Save("task-1", []byte(`{"step":2}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	primary := filepath.Join(dir, "task-1.checkpoint.json")
	for _, p := range []string{primary, primary + ".bak"} {
		if err := os.WriteFile(p, []byte("not json at all"), 0o644); err != nil {
			t.Fatalf("tamper %s: %v", p, err)
		}
	}

	_, _, err = s.Load("task-1")
	if errors.GetCode(err) != errors.CodeCorruption {
		t.Errorf("expected CORRUPTION, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("task-1", []byte(`{}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.Save("task-1", []byte(`{}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete("task-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := s.Load("task-1"); errors.GetCode(err) != errors.CodeNotFound {
		t.Errorf("expected NOT_FOUND after delete, got %v", err)
	}
	// Deleting again is not an error.
	if err := s.Delete("task-1"); err != nil {
		t.Errorf("repeat Delete failed: %v", err)
	}
}

func TestValidName(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "a/b", `a\b`, "../escape"} {
		if _, err := s.Save(name, []byte(`{}`)); errors.GetCode(err) != errors.CodeInvalidInput {
			t.Errorf("Save(%q) should reject the name, got %v", name, err)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}
