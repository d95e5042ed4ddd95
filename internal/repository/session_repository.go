package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Methdul/newkingdom/internal/domain"
)

// ErrSessionNotFound indicates no live session exists for the refresh token.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the server-side view of an issued session, stored keyed
// by refresh token with a per-subject index for bulk revocation.
type SessionRecord struct {
	SubjectID        string
	Role             domain.Role
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionRepository persists session records.
type SessionRepository interface {
	Save(ctx context.Context, record SessionRecord) error
	GetByRefreshToken(ctx context.Context, refreshToken string) (*SessionRecord, error)
	// Consume reads and deletes the record as one logical step: of any
	// number of concurrent consumers, exactly one gets the record and the
	// rest get ErrSessionNotFound.
	Consume(ctx context.Context, refreshToken string) (*SessionRecord, error)
	Delete(ctx context.Context, refreshToken string) error
	DeleteAllForSubject(ctx context.Context, subjectID string) (int, error)
}

type sessionRepository struct {
	client *redis.Client
}

// NewSessionRepository instantiates the Redis-backed repository.
func NewSessionRepository(client *redis.Client) SessionRepository {
	return &sessionRepository{client: client}
}

func sessionKey(refreshToken string) string { return "session:" + refreshToken }
func subjectKey(subjectID string) string    { return "sessions:subject:" + subjectID }

func (r *sessionRepository) Save(ctx context.Context, record SessionRecord) error {
	ttl := time.Until(record.RefreshExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(record.RefreshToken), map[string]any{
		"subject_id": record.SubjectID,
		"role":       string(record.Role),
		"expires_at": record.RefreshExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, sessionKey(record.RefreshToken), ttl)
	pipe.SAdd(ctx, subjectKey(record.SubjectID), record.RefreshToken)
	// index outlives its members by the refresh TTL at most
	pipe.Expire(ctx, subjectKey(record.SubjectID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *sessionRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*SessionRecord, error) {
	values, err := r.client.HGetAll(ctx, sessionKey(refreshToken)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, values["expires_at"])
	if err != nil {
		return nil, err
	}
	return &SessionRecord{
		SubjectID:        values["subject_id"],
		Role:             domain.Role(values["role"]),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: expiresAt,
	}, nil
}

func (r *sessionRepository) Consume(ctx context.Context, refreshToken string) (*SessionRecord, error) {
	record, err := r.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	// the DEL count arbitrates concurrent consumers: DEL is atomic, so
	// only one of them observes the key and wins the record
	deleted, err := r.client.Del(ctx, sessionKey(refreshToken)).Result()
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, ErrSessionNotFound
	}

	if err := r.client.SRem(ctx, subjectKey(record.SubjectID), refreshToken).Err(); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *sessionRepository) Delete(ctx context.Context, refreshToken string) error {
	record, err := r.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(refreshToken))
	pipe.SRem(ctx, subjectKey(record.SubjectID), refreshToken)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *sessionRepository) DeleteAllForSubject(ctx context.Context, subjectID string) (int, error) {
	tokens, err := r.client.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil {
		return 0, err
	}

	pipe := r.client.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, sessionKey(token))
	}
	pipe.Del(ctx, subjectKey(subjectID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(tokens), nil
}
