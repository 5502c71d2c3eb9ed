package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cuemby/acquisitiond/pkg/types"

	_ "modernc.org/sqlite" // pure-Go driver registered under "sqlite"
)

// SQLStore is the database/sql-backed Store implementation. It is driver
// agnostic: any database/sql driver registered under driverName and
// reachable at dataSourceName satisfies the same contract. The
// development and test driver is modernc.org/sqlite, chosen because it
// is pure Go and needs no cgo toolchain.
type SQLStore struct {
	db *sql.DB

	// bulkUnsupported remembers, for the lifetime of the process, that
	// the bulk insert routine is absent — see InsertBatch.
	bulkUnsupported atomic.Bool
}

// Open opens (and, if necessary, initializes the schema of) a relational
// store at dataSourceName using driverName. driverName defaults to
// "sqlite" when empty.
func Open(driverName, dataSourceName string) (*SQLStore, error) {
	if driverName == "" {
		driverName = "sqlite"
	}
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: %w: %v", ErrStorageUnavailable, err)
	}

	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS Machines (
			Id INTEGER PRIMARY KEY,
			Name TEXT NOT NULL UNIQUE,
			Description TEXT,
			AutomateType TEXT,
			OpcEndpoint TEXT NOT NULL,
			IsActive INTEGER NOT NULL DEFAULT 1,
			CreatedAt TIMESTAMP,
			UpdatedAt TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS Tags (
			Id INTEGER PRIMARY KEY,
			MachineId INTEGER NOT NULL,
			Name TEXT NOT NULL,
			NodeId TEXT NOT NULL,
			DataType TEXT NOT NULL,
			Unit TEXT,
			MinValue REAL,
			MaxValue REAL,
			AllowedValues TEXT,
			IsActive INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_nodeid ON Tags(NodeId)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_machine_name ON Tags(MachineId, Name)`,
		`CREATE TABLE IF NOT EXISTS TagValues (
			Id INTEGER PRIMARY KEY AUTOINCREMENT,
			MachineId INTEGER NOT NULL,
			TagId INTEGER NOT NULL,
			TagName TEXT NOT NULL,
			NodeId TEXT NOT NULL,
			Value TEXT NOT NULL,
			Quality INTEGER NOT NULL,
			SourceTimestamp TIMESTAMP,
			ServerTimestamp TIMESTAMP,
			ReceivedTimestamp TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tagvalues_received ON TagValues(ReceivedTimestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

// Ping performs the liveness probe the Batch Sink uses to decide whether
// to attempt tryRecover.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Reload is a no-op for a database/sql-backed store: every query already
// observes committed data. It exists to satisfy the Store contract for
// callers (the Tag Cache) that pair it with their own invalidation.
func (s *SQLStore) Reload(ctx context.Context) error {
	return nil
}

// ListActiveMachines implements the Metadata Repository's two-query join:
// active machines, then active tags for those ids, joined in memory.
func (s *SQLStore) ListActiveMachines(ctx context.Context) ([]*types.Machine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT Id, Name, Description, AutomateType, OpcEndpoint, IsActive, CreatedAt, UpdatedAt
		 FROM Machines WHERE IsActive = 1`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[int32]*types.Machine)
	var ids []int32
	for rows.Next() {
		m := &types.Machine{}
		var isActive int
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.AutomateType, &m.OpcEndpoint, &isActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		m.IsActive = isActive != 0
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	tagsByMachine, err := s.activeTagsByMachineIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	machines := make([]*types.Machine, 0, len(ids))
	for _, id := range ids {
		m := byID[id]
		m.Tags = tagsByMachine[id]
		machines = append(machines, m)
	}
	return machines, nil
}

func (s *SQLStore) activeTagsByMachineIDs(ctx context.Context, ids []int32) (map[int32][]*types.Tag, error) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(
		`SELECT Id, MachineId, Name, NodeId, DataType, Unit, MinValue, MaxValue, AllowedValues, IsActive
		 FROM Tags WHERE MachineId IN (%s) AND IsActive = 1`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	result := make(map[int32][]*types.Tag)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		result[tag.MachineID] = append(result[tag.MachineID], tag)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTag(row rowScanner) (*types.Tag, error) {
	t := &types.Tag{}
	var unit, allowedValues sql.NullString
	var minValue, maxValue sql.NullFloat64
	var isActive int
	var dataType string
	if err := row.Scan(&t.ID, &t.MachineID, &t.Name, &t.NodeID, &dataType, &unit, &minValue, &maxValue, &allowedValues, &isActive); err != nil {
		return nil, err
	}
	t.DataType = types.DataType(dataType)
	t.Unit = unit.String
	t.IsActive = isActive != 0
	if minValue.Valid {
		v := minValue.Float64
		t.MinValue = &v
	}
	if maxValue.Valid {
		v := maxValue.Float64
		t.MaxValue = &v
	}
	if allowedValues.Valid && allowedValues.String != "" {
		t.AllowedValues = strings.Split(allowedValues.String, "\x1f")
	}
	return t, nil
}

// GetMachine returns one machine by id, with its active tags.
func (s *SQLStore) GetMachine(ctx context.Context, id int32) (*types.Machine, error) {
	m := &types.Machine{}
	var isActive int
	err := s.db.QueryRowContext(ctx,
		`SELECT Id, Name, Description, AutomateType, OpcEndpoint, IsActive, CreatedAt, UpdatedAt
		 FROM Machines WHERE Id = ?`, id).
		Scan(&m.ID, &m.Name, &m.Description, &m.AutomateType, &m.OpcEndpoint, &isActive, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	m.IsActive = isActive != 0

	tags, err := s.ListActiveTagsByMachine(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Tags = tags
	return m, nil
}

// ListActiveTagsByMachine returns the active tags owned by one machine.
func (s *SQLStore) ListActiveTagsByMachine(ctx context.Context, machineID int32) ([]*types.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT Id, MachineId, Name, NodeId, DataType, Unit, MinValue, MaxValue, AllowedValues, IsActive
		 FROM Tags WHERE MachineId = ? AND IsActive = 1`, machineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var tags []*types.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// GetTagByNodeID resolves a tag through the unique NodeId index — the
// lookup the Tag Cache falls back to on a cache miss.
func (s *SQLStore) GetTagByNodeID(ctx context.Context, nodeID string) (*types.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT Id, MachineId, Name, NodeId, DataType, Unit, MinValue, MaxValue, AllowedValues, IsActive
		 FROM Tags WHERE NodeId = ?`, nodeID)
	tag, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return tag, nil
}

// InsertBatch persists samples, preferring the bulk entry point
// (insertBulk) and falling back to per-row inserts (insertRows) the
// first time the bulk routine is found to be absent, detected by
// isBulkUnsupportedError's string match on the driver error. Per the
// design note on the open question, that fallback is internal and
// remembered for the lifetime of the process via bulkUnsupported
// rather than re-attempted on every batch or surfaced to the caller.
func (s *SQLStore) InsertBatch(ctx context.Context, samples []types.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if !s.bulkUnsupported.Load() {
		err := s.insertBulk(ctx, samples)
		if err == nil {
			return nil
		}
		if !isBulkUnsupportedError(err) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		s.bulkUnsupported.Store(true)
	}
	return s.insertRows(ctx, samples)
}

// insertBulk models the server-side table-valued bulk operator. No
// portable database/sql API exposes a real TVP across drivers, so the
// closest equivalent available everywhere is a single multi-row INSERT
// built from the batch; the bulk *routine* itself is represented as a
// named SQL function so its absence (detected by the driver's "no such
// function" error) is distinguishable from an ordinary constraint or
// connectivity failure.
func (s *SQLStore) insertBulk(ctx context.Context, samples []types.Sample) error {
	var probe string
	if err := s.db.QueryRowContext(ctx, `SELECT bulk_insert_tag_values_available()`).Scan(&probe); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO TagValues (MachineId, TagId, TagName, NodeId, Value, Quality, SourceTimestamp, ServerTimestamp, ReceivedTimestamp) VALUES `)
	args := make([]interface{}, 0, len(samples)*9)
	for i, smp := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?,?,?,?,?,?,?,?,?)")
		valueJSON, err := json.Marshal(smp.Value)
		if err != nil {
			return err
		}
		args = append(args, smp.MachineID, smp.TagID, smp.TagName, smp.NodeID,
			string(valueJSON), int32(smp.Quality.Word()), smp.SourceTimestamp, smp.ServerTimestamp, smp.ReceivedTimestamp)
	}
	_, err := s.db.ExecContext(ctx, b.String(), args...)
	return err
}

// insertRows is the fallback path: a prepared parameterized INSERT
// executed once per row, within a single transaction so the batch still
// commits as one round trip where the driver supports it.
func (s *SQLStore) insertRows(ctx context.Context, samples []types.Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO TagValues (MachineId, TagId, TagName, NodeId, Value, Quality, SourceTimestamp, ServerTimestamp, ReceivedTimestamp)
		 VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		valueJSON, err := json.Marshal(smp.Value)
		if err != nil {
			return fmt.Errorf("storage: encode value: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, smp.MachineID, smp.TagID, smp.TagName, smp.NodeID,
			string(valueJSON), int32(smp.Quality.Word()), smp.SourceTimestamp, smp.ServerTimestamp, smp.ReceivedTimestamp); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func isBulkUnsupportedError(err error) bool {
	return strings.Contains(err.Error(), "no such function")
}
