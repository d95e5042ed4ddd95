package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Methdul/newkingdom/internal/domain"
)

// StaffProfileRepository reads and updates staff-type profiles.
type StaffProfileRepository interface {
	GetBySubjectID(ctx context.Context, subjectID string) (*domain.StaffProfile, error)
	GetByEmail(ctx context.Context, email string) (*domain.StaffProfile, error)
	Update(ctx context.Context, profile *domain.StaffProfile) error
}

type staffProfileRepository struct {
	pool *pgxpool.Pool
}

// NewStaffProfileRepository instantiates the repository.
func NewStaffProfileRepository(pool *pgxpool.Pool) StaffProfileRepository {
	return &staffProfileRepository{pool: pool}
}

const staffProfileColumns = `subject_id, name, email, password_hash, role, home_location_id, permissions, active_flag, created_at, updated_at`

func (r *staffProfileRepository) GetBySubjectID(ctx context.Context, subjectID string) (*domain.StaffProfile, error) {
	const query = `
        SELECT ` + staffProfileColumns + `
        FROM staff_profiles WHERE subject_id=$1`
	return r.scanOne(ctx, query, subjectID)
}

func (r *staffProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffProfile, error) {
	const query = `
        SELECT ` + staffProfileColumns + `
        FROM staff_profiles WHERE email=$1`
	return r.scanOne(ctx, query, email)
}

func (r *staffProfileRepository) Update(ctx context.Context, profile *domain.StaffProfile) error {
	const query = `
        UPDATE staff_profiles
        SET name=$1, email=$2, password_hash=$3, role=$4, home_location_id=$5, permissions=$6, active_flag=$7, updated_at=NOW()
        WHERE subject_id=$8`

	_, err := r.pool.Exec(ctx, query,
		profile.Name,
		profile.Email,
		profile.PasswordHash,
		profile.Role,
		profile.HomeLocationID,
		capabilityStrings(profile.Permissions),
		profile.Active,
		profile.SubjectID,
	)
	return err
}

func (r *staffProfileRepository) scanOne(ctx context.Context, query string, arg any) (*domain.StaffProfile, error) {
	var profile domain.StaffProfile
	var permissions []string
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&profile.SubjectID,
		&profile.Name,
		&profile.Email,
		&profile.PasswordHash,
		&profile.Role,
		&profile.HomeLocationID,
		&permissions,
		&profile.Active,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	profile.Permissions = capabilitiesFromStrings(permissions)
	return &profile, nil
}

func capabilityStrings(set domain.CapabilitySet) []string {
	caps := set.Slice()
	out := make([]string, 0, len(caps))
	for _, cap := range caps {
		out = append(out, string(cap))
	}
	return out
}

// capabilitiesFromStrings maps stored permission strings onto the closed
// capability enum, dropping anything unrecognized.
func capabilitiesFromStrings(raw []string) domain.CapabilitySet {
	set := make(domain.CapabilitySet, len(raw))
	for _, value := range raw {
		for _, cap := range domain.Capabilities {
			if value == string(cap) {
				set[cap] = struct{}{}
				break
			}
		}
	}
	return set
}
