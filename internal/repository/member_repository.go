package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Methdul/newkingdom/internal/domain"
)

// MemberRepository lists member profiles for the operations views. Listing
// callers are expected to have already passed the location-scope guard; the
// filter's LocationID is what the guard pinned.
type MemberRepository interface {
	List(ctx context.Context, filter MemberFilter) ([]domain.MemberProfile, error)
}

// MemberFilter defines query params for member listing.
type MemberFilter struct {
	LocationID *string
	Status     *domain.MembershipStatus
	Limit      int
	Offset     int
}

type memberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository instantiates the repository.
func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepository{pool: pool}
}

func (r *memberRepository) List(ctx context.Context, filter MemberFilter) ([]domain.MemberProfile, error) {
	query := `
        SELECT ` + memberProfileColumns + `
        FROM member_profiles`
	args := []any{}
	clauses := []string{}

	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		clauses = append(clauses, fmt.Sprintf("home_location_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("membership_status=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MemberProfile
	for rows.Next() {
		var profile domain.MemberProfile
		if err := rows.Scan(
			&profile.SubjectID,
			&profile.Name,
			&profile.Email,
			&profile.PasswordHash,
			&profile.HomeLocationID,
			&profile.MembershipStatus,
			&profile.MembershipEndDate,
			&profile.SuspendedUntil,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, rows.Err()
}
