package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Fixed keys of the two backup logs.
const (
	ContactBackupKey   = "contactSubmissions"
	InterviewBackupKey = "interviewRequests"
)

// InterviewRecordKind tags interview records in their backup log.
const InterviewRecordKind = "interview_request"

// ContactRecord is what lands in the contact backup log.
type ContactRecord struct {
	ContactMessage
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

// InterviewRecord is what lands in the interview backup log.
type InterviewRecord struct {
	InterviewRequest
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
}

// BackupLog is an append-only list of submitted payloads.
type BackupLog interface {
	Append(ctx context.Context, record any) error
	LoadAll(ctx context.Context) ([]json.RawMessage, error)
}

// KVStore is a durable key-value store. Update must run fn and the write
// as one step with respect to other Updates on the same store.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Update(ctx context.Context, key string, fn func(old []byte, ok bool) ([]byte, error)) error
}

// KVLog keeps a backup log as one JSON array under a single key, loaded,
// appended and saved on every Append.
type KVLog struct {
	store KVStore
	key   string
}

var _ BackupLog = (*KVLog)(nil)

func NewKVLog(store KVStore, key string) *KVLog {
	return &KVLog{store: store, key: key}
}

func (l *KVLog) Append(ctx context.Context, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", l.key, err)
	}
	return l.store.Update(ctx, l.key, func(old []byte, ok bool) ([]byte, error) {
		records, err := decodeLog(l.key, old, ok)
		if err != nil {
			return nil, err
		}
		return json.Marshal(append(records, raw))
	})
}

func (l *KVLog) LoadAll(ctx context.Context) ([]json.RawMessage, error) {
	value, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", l.key, err)
	}
	return decodeLog(l.key, value, ok)
}

func decodeLog(key string, value []byte, ok bool) ([]json.RawMessage, error) {
	if !ok || len(value) == 0 {
		return []json.RawMessage{}, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(value, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return records, nil
}

// MemoryKV is a process-local KVStore, used when no database is configured
// and in tests.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
	// Err, when set, is returned by every operation.
	Err error
}

var _ KVStore = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	v, ok := m.values[key]
	return append([]byte(nil), v...), ok, nil
}

func (m *MemoryKV) Update(_ context.Context, key string, fn func([]byte, bool) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	old, ok := m.values[key]
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	m.values[key] = next
	return nil
}
