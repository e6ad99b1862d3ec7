package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultStoreKeyPrefix = "medconsult:session:"
	maxResponseSizeBytes  = 2 << 20
)

// UpstashStore persists sessions in Upstash Redis via its REST API. It is
// the horizontal-scaling drop-in for MemoryStore: the idle timeout maps onto
// a Redis TTL that every write refreshes. Turn exclusivity still relies on
// each session being driven by a single caller at a time.
type UpstashStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	timeout    time.Duration
	now        func() time.Time
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashConfig struct {
	URL         string        `envconfig:"URL" split_words:"true" required:"true"`
	Token       string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" split_words:"true" default:"10s"`
}

// UpstashOption customizes an UpstashStore.
type UpstashOption func(*UpstashStore)

func WithUpstashKeyPrefix(prefix string) UpstashOption {
	return func(s *UpstashStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithUpstashTimeout(timeout time.Duration) UpstashOption {
	return func(s *UpstashStore) {
		s.timeout = timeout
	}
}

func WithUpstashHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

func NewUpstashStore(cfg UpstashConfig, opts ...UpstashOption) (*UpstashStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}

	store := &UpstashStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: httpTimeout},
		keyPrefix:  defaultStoreKeyPrefix,
		timeout:    DefaultSessionTimeout,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.timeout <= 0 {
		return nil, errors.New("session timeout must be > 0")
	}

	return store, nil
}

var _ Store = (*UpstashStore)(nil)

func (s *UpstashStore) Create(ctx context.Context, sessionID string) (*ConsultationSession, error) {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return nil, err
	}

	sess := NewConsultationSession(sessionID, s.now())
	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	// NX makes create-if-absent atomic; a null result means the id is taken.
	resp, err := s.exec(ctx, []any{"SET", key, string(payload), "NX", "EX", s.ttlSeconds()})
	if err != nil {
		return nil, err
	}
	if isNullResult(resp.Result) {
		return nil, ErrDuplicateSession
	}
	return sess, nil
}

func (s *UpstashStore) Get(ctx context.Context, sessionID string) (*ConsultationSession, error) {
	return s.load(ctx, sessionID)
}

func (s *UpstashStore) Update(ctx context.Context, sessionID string, mutate func(*ConsultationSession) error) (*ConsultationSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := mutate(sess); err != nil {
		return nil, err
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	sess.Touch(s.now())

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *UpstashStore) Remove(ctx context.Context, sessionID string) error {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashStore) load(ctx context.Context, sessionID string) (*ConsultationSession, error) {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}
	if isNullResult(resp.Result) {
		return nil, ErrSessionNotFound
	}

	var encoded string
	if err := json.Unmarshal(resp.Result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}

	var sess ConsultationSession
	if err := json.Unmarshal([]byte(encoded), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}

	// The Redis TTL normally expires the key first; this guards against a
	// store configured with a longer TTL than the session timeout.
	if sess.Expired(s.now(), s.timeout) {
		_ = s.Remove(ctx, sessionID)
		return nil, ErrSessionNotFound
	}

	return &sess, nil
}

func (s *UpstashStore) save(ctx context.Context, sess *ConsultationSession) error {
	if sess == nil {
		return ErrNilSession
	}
	key, err := s.redisKey(sess.ID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.exec(ctx, []any{"SET", key, string(payload), "EX", s.ttlSeconds()})
	return err
}

func (s *UpstashStore) redisKey(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return s.keyPrefix + sessionID, nil
}

func (s *UpstashStore) ttlSeconds() int64 {
	seconds := s.timeout / time.Second
	if seconds <= 0 {
		return 1
	}
	if s.timeout%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}

func (s *UpstashStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func isNullResult(result json.RawMessage) bool {
	trimmed := bytes.TrimSpace(result)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
