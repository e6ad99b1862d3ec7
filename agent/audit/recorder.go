package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TurnEntry is one logged turn inside a session record.
type TurnEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
}

// SessionRecord is what Flush appends to the audit file: one object per
// completed session.
type SessionRecord struct {
	SessionID string      `json:"session_id"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Messages  []TurnEntry `json:"messages"`
}

// Recorder buffers turns per session and appends finished sessions to a flat
// JSON array file. It is an audit trail, not a queryable store.
type Recorder struct {
	mu       sync.Mutex
	path     string
	now      func() time.Time
	sessions map[string]*SessionRecord
}

func NewRecorder(path string) *Recorder {
	return &Recorder{
		path:     path,
		now:      time.Now,
		sessions: make(map[string]*SessionRecord),
	}
}

// WithClock overrides the time source, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

// Record buffers one turn for the given session.
func (r *Recorder) Record(sessionID, agentLabel, text, kind string) {
	if r == nil || sessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[sessionID]
	if !ok {
		rec = &SessionRecord{
			SessionID: sessionID,
			StartTime: r.now().UTC(),
		}
		r.sessions[sessionID] = rec
	}
	rec.Messages = append(rec.Messages, TurnEntry{
		Timestamp: r.now().UTC(),
		Agent:     agentLabel,
		Message:   text,
		Type:      kind,
	})
}

// Flush appends the session's record to the audit file and drops the buffer.
// Flushing an unknown session is a no-op. A missing or corrupt file is
// treated as an empty array.
func (r *Recorder) Flush(sessionID string) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)

	if r.path == "" {
		return nil
	}

	rec.EndTime = r.now().UTC()

	var records []SessionRecord
	if raw, err := os.ReadFile(r.path); err == nil {
		if err := json.Unmarshal(raw, &records); err != nil {
			records = nil
		}
	}
	records = append(records, *rec)

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}
	if err := os.WriteFile(r.path, out, 0o644); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
