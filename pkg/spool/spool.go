// Package spool implements the Store-and-Forward Queue: a durable,
// on-disk batch spool used by the Batch Sink while the relational store
// is unhealthy, and drained back into it on recovery.
package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/acquisitiond/pkg/log"
	"github.com/cuemby/acquisitiond/pkg/types"
)

const filenameTimeLayout = "20060102_150405"

// Spool is a single-writer-friendly on-disk queue of StoredBatch files
// under Dir. One file is written per batch; filenames are constructed so
// that lexicographic order equals chronological order.
type Spool struct {
	dir        string
	maxRecords int

	// mu serializes every operation against the spool directory. The
	// specification permits concurrent readers fenced only against
	// writers; a single mutex is the simplest implementation that
	// satisfies that contract without introducing a second lock for a
	// directory that in practice has one reader (the Sink's drain path)
	// active at a time anyway.
	mu sync.Mutex
}

// New creates a Spool rooted at dir, creating the directory if absent.
// maxRecords is the cap enforced by cleanupIfNeeded (append's pre-check).
func New(dir string, maxRecords int) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: create directory: %w", err)
	}
	return &Spool{dir: dir, maxRecords: maxRecords}, nil
}

// Append allocates a fresh batch id, serializes samples as a StoredBatch,
// and writes it atomically (temp file + rename) under Dir. It invokes
// cleanupIfNeeded first, per the specification.
func (s *Spool) Append(samples []types.Sample) (batchID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cleanupIfNeededLocked(); err != nil {
		log.WithComponent("spool").Warn().Err(err).Msg("cleanup before append failed, continuing")
	}

	now := time.Now().UTC()
	// A time-ordered (version 7) id keeps batches written within the same
	// second in creation order once the filenames are sorted.
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("spool: allocate batch id: %w", err)
	}
	batchID = strings.ReplaceAll(id.String(), "-", "")
	batch := types.StoredBatch{
		BatchID:   batchID,
		CreatedAt: now,
		Samples:   samples,
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("spool: encode batch: %w", err)
	}

	filename := fmt.Sprintf("batch_%s_%s.json", now.Format(filenameTimeLayout), batchID)
	finalPath := filepath.Join(s.dir, filename)

	tmp, err := os.CreateTemp(s.dir, "batch_*.tmp")
	if err != nil {
		return "", fmt.Errorf("spool: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("spool: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("spool: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("spool: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("spool: rename temp file: %w", err)
	}

	return batchID, nil
}

// ListBatches enumerates batch files in ascending filename order —
// equivalently, chronological order — deserializing each. A file that
// fails to parse is logged and skipped rather than surfaced as an error.
func (s *Spool) ListBatches() ([]*types.StoredBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBatchesLocked()
}

func (s *Spool) listBatchesLocked() ([]*types.StoredBatch, error) {
	names, err := s.sortedBatchFilenamesLocked()
	if err != nil {
		return nil, err
	}

	batches := make([]*types.StoredBatch, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			log.WithComponent("spool").Warn().Err(err).Str("file", name).Msg("skipping unreadable batch file")
			continue
		}
		var batch types.StoredBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			log.WithComponent("spool").Warn().Err(err).Str("file", name).Msg("skipping corrupt batch file")
			continue
		}
		batches = append(batches, &batch)
	}
	return batches, nil
}

func (s *Spool) sortedBatchFilenamesLocked() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("spool: read directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "batch_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteBatch deletes any file whose name contains batchID.
func (s *Spool) DeleteBatch(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.sortedBatchFilenamesLocked()
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.Contains(name, batchID) {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("spool: delete batch %s: %w", batchID, err)
			}
		}
	}
	return nil
}

// TotalRecords sums samples.length across every batch file currently on
// disk.
func (s *Spool) TotalRecords() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRecordsLocked()
}

func (s *Spool) totalRecordsLocked() (int, error) {
	batches, err := s.listBatchesLocked()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range batches {
		total += len(b.Samples)
	}
	return total, nil
}

// cleanupIfNeeded deletes the oldest batch files, if total record count
// is at or above maxRecords, until the residual count is at or below 80%
// of maxRecords. The deletion policy is per-file, so the result is
// approximate, within one batch's granularity.
func (s *Spool) cleanupIfNeeded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupIfNeededLocked()
}

func (s *Spool) cleanupIfNeededLocked() error {
	if s.maxRecords <= 0 {
		return nil
	}
	names, err := s.sortedBatchFilenamesLocked()
	if err != nil {
		return err
	}

	total, err := s.totalRecordsLocked()
	if err != nil {
		return err
	}
	if total < s.maxRecords {
		return nil
	}

	target := int(0.8 * float64(s.maxRecords))
	for _, name := range names {
		if total <= target {
			break
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var batch types.StoredBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			// Corrupt file: remove it, it counts toward nothing useful.
			os.Remove(filepath.Join(s.dir, name))
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			continue
		}
		total -= len(batch.Samples)
	}
	return nil
}

// ClearAll deletes every batch file under Dir.
func (s *Spool) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.sortedBatchFilenamesLocked()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("spool: clear %s: %w", name, err)
		}
	}
	return nil
}
