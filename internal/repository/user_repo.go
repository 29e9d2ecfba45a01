package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-service/internal/domain"
)

// ErrDuplicateUser indica que el email o username ya existe.
var ErrDuplicateUser = errors.New("email or username already registered")

// UserRepository define el contrato de persistencia para usuarios.
// Las búsquedas son por coincidencia exacta (case-sensitive); la ausencia
// se señala con pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByEmailOrUsername(ctx context.Context, email, username string) (domain.User, error)
	UpdateVerificationToken(ctx context.Context, id, token string) error
	ConsumeVerificationToken(ctx context.Context, token string, verifiedAt time.Time) (domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, username, password_hash, is_verified, verification_token, verified_at, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO users (id, email, username, password_hash, is_verified, verification_token, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.IsVerified,
		user.VerificationToken,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrDuplicateUser
		}
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 OR username = $2
		LIMIT 1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, email, username))
}

// UpdateVerificationToken reemplaza el token pendiente. Solo aplica a
// usuarios sin verificar: un usuario verificado nunca recupera un token vivo,
// aunque la verificación haya ganado la carrera contra este reemplazo.
func (r *PgUserRepository) UpdateVerificationToken(ctx context.Context, id, token string) error {
	const query = `
		UPDATE users
		SET verification_token = $2
		WHERE id = $1 AND is_verified = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ConsumeVerificationToken marca el usuario como verificado en una sola
// sentencia condicional; a lo sumo una llamada concurrente gana.
func (r *PgUserRepository) ConsumeVerificationToken(ctx context.Context, token string, verifiedAt time.Time) (domain.User, error) {
	const query = `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL, verified_at = $2
		WHERE verification_token = $1
		RETURNING ` + userColumns + `
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, token, verifiedAt))
}

func (r *PgUserRepository) scanUser(row pgx.Row) (domain.User, error) {
	var (
		u          domain.User
		token      *string
		verifiedAt *time.Time
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.IsVerified,
		&token,
		&verifiedAt,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	if token != nil {
		u.VerificationToken = *token
	}
	u.VerifiedAt = verifiedAt
	return u, nil
}
