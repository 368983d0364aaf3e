package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func TestInitIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	created, err := InitIfAbsent(s, "plan.1", []byte(`{"steps":[]}`))
	if err != nil || !created {
		t.Fatalf("first init: created=%v err=%v", created, err)
	}

	created, err = InitIfAbsent(s, "plan.1", []byte(`{"steps":["clobbered"]}`))
	if err != nil || created {
		t.Fatalf("second init: created=%v err=%v", created, err)
	}

	kv, _ := s.Get("plan.1")
	if string(kv.Value) != `{"steps":[]}` {
		t.Errorf("loser must not clobber the winner, value = %q", kv.Value)
	}
}

func TestInitIfAbsent_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	const n = 20
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := InitIfAbsent(s, "shared", []byte(fmt.Sprintf(`{"winner":%d}`, i)))
			if err != nil {
				t.Errorf("InitIfAbsent failed: %v", err)
				return
			}
			wins <- created
		}(i)
	}
	wg.Wait()
	close(wins)

	winners := 0
	for created := range wins {
		if created {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("exactly one initializer must win, got %d", winners)
	}
}

func docResults(t *testing.T, s DocStore, key string) []map[string]interface{} {
	t.Helper()
	kv, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(kv.Value, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	raw, _ := doc["results"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]interface{}))
	}
	return out
}

func TestUpsertElement_CreatesDocument(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	err := UpsertElement(s, "batch.1", "results", "step_id",
		map[string]interface{}{"step_id": "a", "status": "done"})
	if err != nil {
		t.Fatalf("UpsertElement failed: %v", err)
	}

	results := docResults(t, s, "batch.1")
	if len(results) != 1 || results[0]["step_id"] != "a" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestUpsertElement_ReplacesMatchingElement(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	el := map[string]interface{}{"step_id": "a", "status": "running"}
	if err := UpsertElement(s, "batch.1", "results", "step_id", el); err != nil {
		t.Fatalf("UpsertElement failed: %v", err)
	}
	el["status"] = "done"
	if err := UpsertElement(s, "batch.1", "results", "step_id", el); err != nil {
		t.Fatalf("UpsertElement failed: %v", err)
	}

	results := docResults(t, s, "batch.1")
	if len(results) != 1 {
		t.Fatalf("upsert of the same key must not duplicate: %v", results)
	}
	if results[0]["status"] != "done" {
		t.Errorf("status = %v, want done", results[0]["status"])
	}
}

func TestUpsertElement_MissingKeyField(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	err := UpsertElement(s, "batch.1", "results", "step_id", map[string]interface{}{"status": "done"})
	if err == nil {
		t.Error("expected error for element without key field")
	}
}

func TestUpsertElement_ConcurrentWritersNoLostUpdates(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	// Each CAS failure implies another writer committed, so a writer
	// retries at most n-1 times; n stays within the CAS retry budget.
	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			el := map[string]interface{}{
				"step_id": fmt.Sprintf("step-%d", i),
				"status":  "done",
			}
			if err := UpsertElement(s, "batch.1", "results", "step_id", el); err != nil {
				t.Errorf("UpsertElement failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	results := docResults(t, s, "batch.1")
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	seen := make(map[string]bool, n)
	for _, r := range results {
		id := r["step_id"].(string)
		if seen[id] {
			t.Fatalf("duplicate entry for %s", id)
		}
		seen[id] = true
	}
}
