package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ngoconnect/apiserver/types"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, user_type, first_name, last_name,
		organization_name, contact_person, profile, avatar_key, is_email_verified,
		password_reset_code, password_reset_expires_at, is_active, last_login,
		created_at, updated_at`

// userRow mirrors the users table. The reset pair is nullable in SQL and
// folded into a single *types.PasswordReset on the way out.
type userRow struct {
	ID                     uuid.UUID      `db:"id"`
	Email                  string         `db:"email"`
	PasswordHash           string         `db:"password_hash"`
	Role                   types.Role     `db:"user_type"`
	FirstName              string         `db:"first_name"`
	LastName               string         `db:"last_name"`
	OrganizationName       string         `db:"organization_name"`
	ContactPerson          string         `db:"contact_person"`
	Profile                types.Profile  `db:"profile"`
	AvatarKey              string         `db:"avatar_key"`
	IsEmailVerified        bool           `db:"is_email_verified"`
	PasswordResetCode      sql.NullString `db:"password_reset_code"`
	PasswordResetExpiresAt sql.NullTime   `db:"password_reset_expires_at"`
	IsActive               bool           `db:"is_active"`
	LastLogin              sql.NullTime   `db:"last_login"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

func (r userRow) user() types.User {
	u := types.User{
		ID:               r.ID,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		Role:             r.Role,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		OrganizationName: r.OrganizationName,
		ContactPerson:    r.ContactPerson,
		Profile:          r.Profile.Normalize(),
		AvatarKey:        r.AvatarKey,
		IsEmailVerified:  r.IsEmailVerified,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.PasswordResetCode.Valid && r.PasswordResetExpiresAt.Valid {
		u.Reset = &types.PasswordReset{
			Code:      r.PasswordResetCode.String,
			ExpiresAt: r.PasswordResetExpiresAt.Time,
		}
	}
	if r.LastLogin.Valid {
		lastLogin := r.LastLogin.Time
		u.LastLogin = &lastLogin
	}
	return u
}

// UserRepository handles persistence for users in Postgres.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.get(ctx, query, types.NormalizeEmail(email))
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (types.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return row.user(), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.Email = types.NormalizeEmail(user.Email)
	user.Profile = user.Profile.Normalize()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, email, password_hash, user_type, first_name, last_name,
			organization_name, contact_person, profile, avatar_key, is_email_verified,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FirstName,
		user.LastName,
		user.OrganizationName,
		user.ContactPerson,
		user.Profile,
		user.AvatarKey,
		user.IsEmailVerified,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, err
	}
	user.Reset = nil
	return user, nil
}

// UpdateProfile persists the editable fields of user. Credentials, role,
// email, reset state and activity are not part of the statement.
func (r *UserRepository) UpdateProfile(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()
	user.Profile = user.Profile.Normalize()

	const query = `
		UPDATE users
		SET first_name = $1,
			last_name = $2,
			organization_name = $3,
			contact_person = $4,
			profile = $5,
			avatar_key = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.OrganizationName,
		user.ContactPerson,
		user.Profile,
		user.AvatarKey,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// UpdatePassword stores a new hash and clears any outstanding reset code in
// the same statement.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			password_reset_code = NULL,
			password_reset_expires_at = NULL,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// SetPasswordReset records a reset code and its expiry, replacing any
// previous one.
func (r *UserRepository) SetPasswordReset(ctx context.Context, id uuid.UUID, reset types.PasswordReset) error {
	const query = `
		UPDATE users
		SET password_reset_code = $1,
			password_reset_expires_at = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, reset.Code, reset.ExpiresAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ClearExpiredResets removes reset codes that expired before the given
// instant and reports how many users were affected.
func (r *UserRepository) ClearExpiredResets(ctx context.Context, before time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET password_reset_code = NULL,
			password_reset_expires_at = NULL
		WHERE password_reset_expires_at IS NOT NULL
			AND password_reset_expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// List returns the active users of filter.Role matching every set criterion,
// oldest first.
func (r *UserRepository) List(ctx context.Context, filter types.UserFilter) ([]types.User, error) {
	query, args := buildListQuery(filter)
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func buildListQuery(filter types.UserFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	add("user_type = $%d", filter.Role)
	where = append(where, "is_active = TRUE")
	if len(filter.Skills) > 0 {
		add("profile -> 'skills' ?| $%d", pq.Array(filter.Skills))
	}
	if len(filter.Interests) > 0 {
		add("profile -> 'interests' ?| $%d", pq.Array(filter.Interests))
	}
	if len(filter.FocusAreas) > 0 {
		add("profile -> 'focusAreas' ?| $%d", pq.Array(filter.FocusAreas))
	}
	if filter.Experience != "" {
		add("profile ->> 'experience' = $%d", string(filter.Experience))
	}
	if filter.Availability != "" {
		add("profile ->> 'availability' = $%d", string(filter.Availability))
	}
	if filter.Size != "" {
		add("profile ->> 'size' = $%d", string(filter.Size))
	}
	if location := strings.TrimSpace(filter.Location); location != "" {
		add(`profile ->> 'location' ILIKE $%d ESCAPE '\'`, "%"+escapeLike(location)+"%")
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	return query, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Count returns the number of users with the given role, or all users when
// role is empty.
func (r *UserRepository) Count(ctx context.Context, role types.Role) (int64, error) {
	var (
		count int64
		err   error
	)
	if role == "" {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	} else {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE user_type = $1`, role)
	}
	return count, err
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
