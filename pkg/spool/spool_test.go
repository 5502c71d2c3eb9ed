package spool

import (
	"testing"
	"time"

	"github.com/cuemby/acquisitiond/pkg/types"
)

func makeSamples(n int) []types.Sample {
	samples := make([]types.Sample, n)
	for i := range samples {
		samples[i] = types.Sample{
			MachineID: 1, TagID: 1, TagName: "T", NodeID: "ns=2;s=T",
			Value: types.NewFloatValue(float64(i)), Quality: types.NewOpcQuality(0),
		}
	}
	return samples
}

func TestAppendAndListBatches(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id, err := s.Append(makeSamples(3))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(id) != 32 {
		t.Errorf("expected 32-hex batch id, got %q (%d chars)", id, len(id))
	}

	batches, err := s.ListBatches()
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 1 || len(batches[0].Samples) != 3 {
		t.Fatalf("unexpected batches: %+v", batches)
	}
}

func TestChronologicalOrdering(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Append(makeSamples(1))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(10 * time.Millisecond)
	}

	batches, err := s.ListBatches()
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	for i, b := range batches {
		if b.BatchID != ids[i] {
			t.Errorf("batch[%d].BatchID = %s, want %s (chronology violated)", i, b.BatchID, ids[i])
		}
	}
}

func TestDeleteBatch(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := s.Append(makeSamples(1))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.DeleteBatch(id); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	batches, err := s.ListBatches()
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected no batches after delete, got %d", len(batches))
	}
}

func TestTotalRecords(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Append(makeSamples(5)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append(makeSamples(7)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	total, err := s.TotalRecords()
	if err != nil {
		t.Fatalf("TotalRecords: %v", err)
	}
	if total != 12 {
		t.Errorf("got %d, want 12", total)
	}
}

// TestCleanupConvergence is scenario S5 from the specification: 12
// batches of 10 samples each against maxRecords=100. Cleanup runs before
// every append, so the 11th append already trims 100 down to 80 and the
// 12 appends leave 100 on disk; the cleanup the next append runs first
// must then bring the total down to at most 80.
func TestCleanupConvergence(t *testing.T) {
	s, err := New(t.TempDir(), 100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 12; i++ {
		if _, err := s.Append(makeSamples(10)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := s.cleanupIfNeeded(); err != nil {
		t.Fatalf("cleanupIfNeeded: %v", err)
	}

	total, err := s.TotalRecords()
	if err != nil {
		t.Fatalf("TotalRecords: %v", err)
	}
	if total > 100 {
		t.Errorf("total after cleanup = %d, want <= 100", total)
	}
	if total > 80 {
		t.Errorf("total after cleanup = %d, want <= 80 (0.8 * maxRecords)", total)
	}
}

func TestClearAll(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Append(makeSamples(1)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	batches, err := s.ListBatches()
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected empty spool, got %d batches", len(batches))
	}
}
