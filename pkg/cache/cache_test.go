package cache

import (
	"path/filepath"
	"testing"

	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "projector.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	saved := model.Health{
		Status: "healthy",
		Cards: map[string]model.CardHealth{
			"clock-now": {Status: "healthy"},
		},
	}
	s.Save(KeyHealth, saved)

	var loaded model.Health
	if !s.Load(KeyHealth, &loaded) {
		t.Fatal("Load reported absent after Save")
	}
	if loaded.Status != "healthy" {
		t.Errorf("Status=%q, want healthy", loaded.Status)
	}
	if _, ok := loaded.Cards["clock-now"]; !ok {
		t.Error("per-card entry lost in round trip")
	}
}

func TestLoadAbsentKey(t *testing.T) {
	s := openTestStore(t)
	var out model.Health
	if s.Load("never-written", &out) {
		t.Error("Load reported a hit for an absent key")
	}
}

func TestNewestWriteWins(t *testing.T) {
	s := openTestStore(t)
	s.Save(KeyState, map[string]string{"v": "first"})
	s.Save(KeyState, map[string]string{"v": "second"})

	var out map[string]string
	if !s.Load(KeyState, &out) {
		t.Fatal("Load failed")
	}
	if out["v"] != "second" {
		t.Errorf("v=%q, want second", out["v"])
	}
}

func TestSchemaVersionMismatchTreatedAsAbsent(t *testing.T) {
	s := openTestStore(t)
	s.Save(KeyProfile, map[string]string{"old": "shape"})

	// Rewrite the row as if an older binary had produced it.
	if _, err := s.db.Exec(`UPDATE snapshots SET schema_version = ? WHERE key = ?`, SchemaVersion+1, KeyProfile); err != nil {
		t.Fatalf("rewriting version: %v", err)
	}

	var out map[string]string
	if s.Load(KeyProfile, &out) {
		t.Error("Load trusted a blob from a different schema version")
	}
}

func TestCorruptPayloadTreatedAsAbsent(t *testing.T) {
	s := openTestStore(t)
	s.Save(KeyState, map[string]string{"ok": "yes"})
	if _, err := s.db.Exec(`UPDATE snapshots SET payload = ? WHERE key = ?`, []byte("{nope"), KeyState); err != nil {
		t.Fatalf("corrupting payload: %v", err)
	}
	var out map[string]string
	if s.Load(KeyState, &out) {
		t.Error("Load returned a corrupt blob as valid")
	}
}

func TestLayoutKeyScopedPerView(t *testing.T) {
	if LayoutKey("Morning") == LayoutKey("Evening") {
		t.Error("layout keys must be view-scoped")
	}
}

func TestSaveOnClosedStoreDoesNotPanic(t *testing.T) {
	s := openTestStore(t)
	_ = s.Close()
	// Must fail silently per the cache contract.
	s.Save(KeyState, map[string]string{"v": "x"})
	var out map[string]string
	if s.Load(KeyState, &out) {
		t.Error("Load succeeded on closed store")
	}
}
