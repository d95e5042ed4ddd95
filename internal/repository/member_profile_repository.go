package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Methdul/newkingdom/internal/domain"
)

// MemberProfileRepository reads and updates member-type profiles.
type MemberProfileRepository interface {
	GetBySubjectID(ctx context.Context, subjectID string) (*domain.MemberProfile, error)
	GetByEmail(ctx context.Context, email string) (*domain.MemberProfile, error)
	Update(ctx context.Context, profile *domain.MemberProfile) error
}

type memberProfileRepository struct {
	pool *pgxpool.Pool
}

// NewMemberProfileRepository instantiates the repository.
func NewMemberProfileRepository(pool *pgxpool.Pool) MemberProfileRepository {
	return &memberProfileRepository{pool: pool}
}

const memberProfileColumns = `subject_id, name, email, password_hash, home_location_id, membership_status, membership_end_date, suspended_until, created_at, updated_at`

func (r *memberProfileRepository) GetBySubjectID(ctx context.Context, subjectID string) (*domain.MemberProfile, error) {
	const query = `
        SELECT ` + memberProfileColumns + `
        FROM member_profiles WHERE subject_id=$1`
	return r.scanOne(ctx, query, subjectID)
}

func (r *memberProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.MemberProfile, error) {
	const query = `
        SELECT ` + memberProfileColumns + `
        FROM member_profiles WHERE email=$1`
	return r.scanOne(ctx, query, email)
}

func (r *memberProfileRepository) Update(ctx context.Context, profile *domain.MemberProfile) error {
	const query = `
        UPDATE member_profiles
        SET name=$1, email=$2, password_hash=$3, home_location_id=$4, membership_status=$5, membership_end_date=$6, suspended_until=$7, updated_at=NOW()
        WHERE subject_id=$8`

	_, err := r.pool.Exec(ctx, query,
		profile.Name,
		profile.Email,
		profile.PasswordHash,
		profile.HomeLocationID,
		profile.MembershipStatus,
		profile.MembershipEndDate,
		profile.SuspendedUntil,
		profile.SubjectID,
	)
	return err
}

func (r *memberProfileRepository) scanOne(ctx context.Context, query string, arg any) (*domain.MemberProfile, error) {
	var profile domain.MemberProfile
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
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
	return &profile, nil
}
