// Package session manages opaque admin access tokens stored in Redis.
//
// Each token maps to a JSON session under tokens:admin:<token> with a TTL. A sorted
// set index:admin holds "<uid>:<token>" members scored by absolute expiry (epoch
// seconds, +inf for sessions without TTL) so every session of one user can be found
// and invalidated without scanning the keyspace.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/config"
	"maplocate/api/internal/models"
	"maplocate/api/internal/security"
)

const (
	TokenKeyPrefix = "tokens:admin:"
	IndexKey       = "index:admin"

	maxUsernameLength = 64
)

var ErrInvalidSession = errors.New("invalid session")

type Manager struct {
	client    redis.UniversalClient
	ttl       time.Duration
	scanCount int64
	log       zerolog.Logger
	now       func() time.Time
}

func NewManager(client redis.UniversalClient, cfg config.SecurityConfig, log zerolog.Logger) *Manager {
	scanCount := cfg.IndexScanCount
	if scanCount <= 0 {
		scanCount = 100
	}
	return &Manager{
		client:    client,
		ttl:       cfg.SessionTTL,
		scanCount: scanCount,
		log:       log,
		now:       time.Now,
	}
}

func TokenKey(token string) string {
	return TokenKeyPrefix + token
}

func indexMember(uid int64, token string) string {
	return fmt.Sprintf("%d:%s", uid, token)
}

func (m *Manager) NewToken() (string, error) {
	return security.NewToken()
}

// Issue creates a fresh token for s and stores it.
func (m *Manager) Issue(ctx context.Context, s models.Session) (string, error) {
	token, err := m.NewToken()
	if err != nil {
		return "", err
	}
	if err := m.Store(ctx, token, s); err != nil {
		return "", err
	}
	return token, nil
}

// Store writes the session under token and adds it to the per-user index in one
// MULTI/EXEC.
func (m *Manager) Store(ctx context.Context, token string, s models.Session) error {
	if token == "" {
		return fmt.Errorf("store session: empty token")
	}
	if err := validate(s); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	score := math.Inf(1)
	if m.ttl > 0 {
		score = float64(m.now().Add(m.ttl).Unix())
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, TokenKey(token), payload, m.ttl)
		pipe.ZAdd(ctx, IndexKey, redis.Z{Score: score, Member: indexMember(s.UID, token)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// TokenFromHeader accepts either the raw token or "Bearer <token>".
func TokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		header = strings.TrimSpace(header[7:])
	}
	return header
}

// Resolve returns the session addressed by the Authorization header value.
// Missing header: apperror.NoAccessToken. Unknown, expired or malformed session:
// apperror.InvalidAccessToken. Redis failures are returned wrapped.
func (m *Manager) Resolve(ctx context.Context, authorization string) (models.Session, error) {
	token := TokenFromHeader(authorization)
	if token == "" {
		return models.Session{}, apperror.New(apperror.NoAccessToken, nil)
	}
	return m.Get(ctx, token)
}

func (m *Manager) Get(ctx context.Context, token string) (models.Session, error) {
	packed, err := m.client.Get(ctx, TokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Session{}, apperror.New(apperror.InvalidAccessToken, nil)
		}
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	if len(packed) == 0 {
		return models.Session{}, apperror.New(apperror.InvalidAccessToken, nil)
	}

	s, err := decode(packed)
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("payload", string(packed)).
			Msg("bad data found in session")
		return models.Session{}, apperror.New(apperror.InvalidAccessToken, nil)
	}
	return s, nil
}

// Invalidate removes every session indexed for uid and returns how many index
// entries were dropped. The index is walked with ZSCAN in pages of scanCount.
// Not atomic: a failure part way leaves the remaining sessions for a retry.
func (m *Manager) Invalidate(ctx context.Context, uid int64) (int, error) {
	members, err := m.scanUser(ctx, uid)
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	for start := 0; start < len(members); start += int(m.scanCount) {
		end := min(start+int(m.scanCount), len(members))
		keys := make([]string, 0, end-start)
		for _, member := range members[start:end] {
			keys = append(keys, TokenKey(member[strings.IndexByte(member, ':')+1:]))
		}
		if err := m.client.Del(ctx, keys...).Err(); err != nil {
			return 0, fmt.Errorf("delete sessions: %w", err)
		}
	}

	args := make([]any, len(members))
	for i, member := range members {
		args[i] = member
	}
	if err := m.client.ZRem(ctx, IndexKey, args...).Err(); err != nil {
		return 0, fmt.Errorf("remove index entries: %w", err)
	}

	m.log.Debug().Int64("uid", uid).Int("sessions", len(members)).Msg("admin sessions invalidated")
	return len(members), nil
}

// Revoke drops a single token. Unknown tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	s, err := m.Get(ctx, token)
	if err != nil {
		if apperror.HasCode(err, apperror.InvalidAccessToken) {
			return m.client.Del(ctx, TokenKey(token)).Err()
		}
		return err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, TokenKey(token))
		pipe.ZRem(ctx, IndexKey, indexMember(s.UID, token))
		return nil
	})
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

type Entry struct {
	Token string
	// ExpiresAt is zero for sessions without TTL.
	ExpiresAt time.Time
}

// ListUserSessions returns the index entries of uid that have not expired yet.
func (m *Manager) ListUserSessions(ctx context.Context, uid int64) ([]Entry, error) {
	members, err := m.scanUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	scores, err := m.client.ZMScore(ctx, IndexKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("read index scores: %w", err)
	}

	now := m.now().Unix()
	entries := make([]Entry, 0, len(members))
	for i, member := range members {
		score := scores[i]
		var expiresAt time.Time
		if !math.IsInf(score, 1) {
			if int64(score) < now {
				continue
			}
			expiresAt = time.Unix(int64(score), 0)
		}
		entries = append(entries, Entry{
			Token:     member[strings.IndexByte(member, ':')+1:],
			ExpiresAt: expiresAt,
		})
	}
	return entries, nil
}

// SweepExpired removes index entries whose expiry is before now. Their session keys
// are already gone through TTL.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	removed, err := m.client.ZRemRangeByScore(ctx, IndexKey, "-inf", "("+strconv.FormatInt(now.Unix(), 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("sweep index: %w", err)
	}
	return removed, nil
}

func (m *Manager) scanUser(ctx context.Context, uid int64) ([]string, error) {
	match := fmt.Sprintf("%d:*", uid)
	seen := make(map[string]struct{})
	var members []string

	var cursor uint64
	for {
		page, next, err := m.client.ZScan(ctx, IndexKey, cursor, match, m.scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		// ZSCAN replies member, score, member, score, ...
		for i := 0; i < len(page); i += 2 {
			if _, dup := seen[page[i]]; dup {
				continue
			}
			seen[page[i]] = struct{}{}
			members = append(members, page[i])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return members, nil
}

type payload struct {
	UID      *int64  `json:"uid"`
	Username *string `json:"username"`
}

func decode(packed []byte) (models.Session, error) {
	dec := json.NewDecoder(bytes.NewReader(packed))
	dec.DisallowUnknownFields()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.Session{}, fmt.Errorf("%w: trailing data after payload", ErrInvalidSession)
	}
	if p.UID == nil || p.Username == nil {
		return models.Session{}, fmt.Errorf("%w: missing uid or username", ErrInvalidSession)
	}

	s := models.Session{UID: *p.UID, Username: *p.Username}
	if err := validate(s); err != nil {
		return models.Session{}, err
	}
	return s, nil
}

func validate(s models.Session) error {
	if s.UID < 0 {
		return fmt.Errorf("%w: negative uid", ErrInvalidSession)
	}
	if utf8.RuneCountInString(s.Username) > maxUsernameLength {
		return fmt.Errorf("%w: username longer than %d", ErrInvalidSession, maxUsernameLength)
	}
	return nil
}
