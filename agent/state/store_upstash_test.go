package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeRedis records every REST command and replies from a scripted queue.
type fakeRedis struct {
	t        *testing.T
	commands [][]any
	replies  []string
}

func (f *fakeRedis) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var command []any
		if err := json.NewDecoder(r.Body).Decode(&command); err != nil {
			f.t.Fatalf("decode command: %v", err)
		}
		f.commands = append(f.commands, command)
		if len(f.replies) == 0 {
			f.t.Fatalf("no scripted reply for command %#v", command)
		}
		reply := f.replies[0]
		f.replies = f.replies[1:]
		fmt.Fprint(w, reply)
	}
}

func newFakeUpstashStore(t *testing.T, redis *fakeRedis, opts ...UpstashOption) *UpstashStore {
	t.Helper()

	server := httptest.NewServer(redis.handler())
	t.Cleanup(server.Close)

	opts = append([]UpstashOption{WithUpstashHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashStore(
		UpstashConfig{URL: server.URL, Token: "token"},
		opts...,
	)
	if err != nil {
		t.Fatalf("NewUpstashStore() error = %v", err)
	}
	return store
}

func encodedSession(t *testing.T, sess *ConsultationSession) string {
	t.Helper()

	payload, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded session: %v", err)
	}
	return string(encoded)
}

func TestUpstashStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashStore{keyPrefix: defaultStoreKeyPrefix}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "medconsult:session:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "medconsult:session:abc")
	}
}

func TestUpstashStoreRedisKeyEmptySession(t *testing.T) {
	t.Parallel()

	store := &UpstashStore{keyPrefix: defaultStoreKeyPrefix}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidSession", err)
	}
}

func TestUpstashStoreCreateSetsNXWithTTL(t *testing.T) {
	t.Parallel()

	redis := &fakeRedis{t: t, replies: []string{`{"result":"OK"}`}}
	store := newFakeUpstashStore(t, redis, WithUpstashTimeout(30*time.Minute))

	sess, err := store.Create(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.ID != "session-1" || sess.Stage != StageIntake {
		t.Fatalf("Create() = %+v", sess)
	}

	if len(redis.commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(redis.commands))
	}
	command := redis.commands[0]
	if len(command) != 6 {
		t.Fatalf("unexpected command: %#v", command)
	}
	if command[0] != "SET" || command[1] != "medconsult:session:session-1" {
		t.Fatalf("command = %#v", command)
	}
	if command[3] != "NX" || command[4] != "EX" {
		t.Fatalf("create must be SET NX EX: %#v", command)
	}
	if command[5] != float64(1800) {
		t.Fatalf("ttl = %v, want 1800", command[5])
	}
}

func TestUpstashStoreCreateDuplicate(t *testing.T) {
	t.Parallel()

	// A null SET NX result means another caller holds the key.
	redis := &fakeRedis{t: t, replies: []string{`{"result":null}`}}
	store := newFakeUpstashStore(t, redis)

	_, err := store.Create(context.Background(), "session-1")
	if !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("Create() error = %v, want ErrDuplicateSession", err)
	}
}

func TestUpstashStoreGetMissing(t *testing.T) {
	t.Parallel()

	redis := &fakeRedis{t: t, replies: []string{`{"result":null}`}}
	store := newFakeUpstashStore(t, redis)

	_, err := store.Get(context.Background(), "session-1")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestUpstashStoreGetRoundTrip(t *testing.T) {
	t.Parallel()

	seed := NewConsultationSession("session-2", time.Now().UTC())
	seed.QuestionCount = 3

	redis := &fakeRedis{t: t, replies: []string{
		fmt.Sprintf(`{"result":%s}`, encodedSession(t, seed)),
	}}
	store := newFakeUpstashStore(t, redis)

	sess, err := store.Get(context.Background(), "session-2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.ID != "session-2" || sess.QuestionCount != 3 {
		t.Fatalf("Get() = %+v", sess)
	}

	command := redis.commands[0]
	if command[0] != "GET" || command[1] != "medconsult:session:session-2" {
		t.Fatalf("command = %#v", command)
	}
}

func TestUpstashStoreUpdateRefreshesTTL(t *testing.T) {
	t.Parallel()

	seed := NewConsultationSession("session-3", time.Now().UTC().Add(-time.Minute))
	redis := &fakeRedis{t: t, replies: []string{
		fmt.Sprintf(`{"result":%s}`, encodedSession(t, seed)),
		`{"result":"OK"}`,
	}}
	store := newFakeUpstashStore(t, redis, WithUpstashTimeout(30*time.Minute))

	sess, err := store.Update(context.Background(), "session-3", func(s *ConsultationSession) error {
		s.Append(RolePatient, "my knee hurts", time.Now().UTC())
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(sess.Transcript) != 1 || sess.Transcript[0].Text != "my knee hurts" {
		t.Fatalf("Update() = %+v", sess)
	}
	if !sess.LastActivityAt.After(seed.LastActivityAt) {
		t.Fatal("Update() must touch the activity timestamp")
	}

	if len(redis.commands) != 2 {
		t.Fatalf("expected GET then SET, got %#v", redis.commands)
	}
	save := redis.commands[1]
	if save[0] != "SET" || save[1] != "medconsult:session:session-3" {
		t.Fatalf("save command = %#v", save)
	}
	payload, ok := save[2].(string)
	if !ok || !strings.Contains(payload, "my knee hurts") {
		t.Fatalf("saved payload = %v", save[2])
	}
	if save[3] != "EX" || save[4] != float64(1800) {
		t.Fatalf("save must refresh the ttl: %#v", save)
	}
}

func TestUpstashStoreUpdateMutateErrorSkipsSave(t *testing.T) {
	t.Parallel()

	seed := NewConsultationSession("session-4", time.Now().UTC())
	redis := &fakeRedis{t: t, replies: []string{
		fmt.Sprintf(`{"result":%s}`, encodedSession(t, seed)),
	}}
	store := newFakeUpstashStore(t, redis)

	wantErr := errors.New("mutate failed")
	_, err := store.Update(context.Background(), "session-4", func(*ConsultationSession) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Update() error = %v, want %v", err, wantErr)
	}
	if len(redis.commands) != 1 {
		t.Fatalf("failed mutate must not write: %#v", redis.commands)
	}
}

func TestUpstashStoreExpiredSessionIsRemoved(t *testing.T) {
	t.Parallel()

	// Idle past the session timeout even though the Redis key survived.
	seed := NewConsultationSession("session-5", time.Now().UTC().Add(-2*time.Hour))
	redis := &fakeRedis{t: t, replies: []string{
		fmt.Sprintf(`{"result":%s}`, encodedSession(t, seed)),
		`{"result":1}`,
	}}
	store := newFakeUpstashStore(t, redis, WithUpstashTimeout(30*time.Minute))

	_, err := store.Get(context.Background(), "session-5")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() error = %v, want ErrSessionNotFound", err)
	}
	if len(redis.commands) != 2 || redis.commands[1][0] != "DEL" {
		t.Fatalf("expired session must be deleted: %#v", redis.commands)
	}
}

func TestUpstashStoreRemoveIssuesDel(t *testing.T) {
	t.Parallel()

	redis := &fakeRedis{t: t, replies: []string{`{"result":1}`}}
	store := newFakeUpstashStore(t, redis)

	if err := store.Remove(context.Background(), "session-6"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	command := redis.commands[0]
	if command[0] != "DEL" || command[1] != "medconsult:session:session-6" {
		t.Fatalf("command = %#v", command)
	}
}

func TestUpstashStoreSurfacesRedisErrors(t *testing.T) {
	t.Parallel()

	redis := &fakeRedis{t: t, replies: []string{`{"error":"WRONGPASS invalid token"}`}}
	store := newFakeUpstashStore(t, redis)

	_, err := store.Get(context.Background(), "session-7")
	if err == nil || !strings.Contains(err.Error(), "WRONGPASS") {
		t.Fatalf("Get() error = %v, want redis error", err)
	}
}

func TestNewUpstashStoreValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashStore(UpstashConfig{Token: "token"}); err == nil {
		t.Fatal("missing url must be rejected")
	}
	if _, err := NewUpstashStore(UpstashConfig{URL: "https://example.upstash.io"}); err == nil {
		t.Fatal("missing token must be rejected")
	}
	if _, err := NewUpstashStore(
		UpstashConfig{URL: "https://example.upstash.io", Token: "token"},
		WithUpstashTimeout(-time.Minute),
	); err == nil {
		t.Fatal("negative session timeout must be rejected")
	}
}
