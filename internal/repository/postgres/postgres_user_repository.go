package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/patrimonio/patrimonio-webapi/internal/models"
	pkgerrors "github.com/patrimonio/patrimonio-webapi/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const userTracer = "user-repository"

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func validateUser(user *models.User) error {
	switch {
	case strings.TrimSpace(user.Name) == "":
		return fmt.Errorf("%w: name is required", pkgerrors.ErrInvalidInput)
	case utf8.RuneCountInString(user.Name) > 100:
		return fmt.Errorf("%w: name too long", pkgerrors.ErrInvalidInput)
	case strings.TrimSpace(user.Email) == "":
		return fmt.Errorf("%w: email is required", pkgerrors.ErrInvalidInput)
	case user.PasswordHash == "":
		return fmt.Errorf("%w: password_hash is required", pkgerrors.ErrInvalidInput)
	case !models.ValidRole(user.Role):
		return fmt.Errorf("%w: unknown role %q", pkgerrors.ErrInvalidInput, user.Role)
	}
	return nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, span, done := startCall(ctx, userTracer, "CreateUser")
	defer done(&err)

	if user == nil {
		err = pkgerrors.ErrNilUser
		slog.Error("failed to create user", "method", "Create", "error", err)
		return err
	}
	if err = validateUser(user); err != nil {
		slog.Error("invalid user", "method", "Create", "email", user.Email, "error", err)
		return err
	}
	span.SetAttributes(attribute.String("role", user.Role))

	query := `INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err = r.db.QueryRowContext(ctx, query, user.Name, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = pkgerrors.ErrUserAlreadyExists
			slog.Warn("user already exists", "method", "Create", "email", user.Email)
			return err
		}
		slog.Error("failed to create user", "method", "Create", "email", user.Email, "error", err)
		err = fmt.Errorf("failed to create user: %w", err)
		return err
	}

	slog.Info("user created", "method", "Create", "user_id", user.ID, "role", user.Role)
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int32) (user *models.User, err error) {
	ctx, span, done := startCall(ctx, userTracer, "GetUserByID")
	defer done(&err)
	span.SetAttributes(attribute.Int("user_id", int(id)))

	query := `SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = $1`
	user, err = r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, pkgerrors.ErrUserNotFound) {
		slog.Warn("user not found", "method", "GetByID", "user_id", id)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get user by id", "method", "GetByID", "user_id", id, "error", err)
		err = fmt.Errorf("failed to get user by id: %w", err)
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (user *models.User, err error) {
	ctx, _, done := startCall(ctx, userTracer, "GetUserByEmail")
	defer done(&err)

	if email == "" {
		err = fmt.Errorf("%w: email cannot be empty", pkgerrors.ErrInvalidInput)
		return nil, err
	}

	query := `SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = $1`
	user, err = r.scanOne(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, pkgerrors.ErrUserNotFound) {
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get user by email", "method", "GetByEmail", "error", err)
		err = fmt.Errorf("failed to get user by email: %w", err)
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) List(ctx context.Context) (users []models.User, err error) {
	ctx, _, done := startCall(ctx, userTracer, "ListUsers")
	defer done(&err)

	query := `SELECT id, name, email, password_hash, role, created_at FROM users ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("failed to list users", "method", "List", "error", err)
		err = fmt.Errorf("failed to list users: %w", err)
		return nil, err
	}
	defer rows.Close()

	users = make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			err = fmt.Errorf("failed to scan user: %w", err)
			return nil, err
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("failed to iterate users: %w", err)
		return nil, err
	}
	return users, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *models.User) (err error) {
	ctx, span, done := startCall(ctx, userTracer, "UpdateUser")
	defer done(&err)

	if user == nil {
		err = pkgerrors.ErrNilUser
		return err
	}
	if err = validateUser(user); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("user_id", int(user.ID)))

	query := `UPDATE users SET name = $1, email = $2, password_hash = $3, role = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, user.Name, user.Email, user.PasswordHash, user.Role, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = pkgerrors.ErrUserAlreadyExists
			return err
		}
		slog.Error("failed to update user", "method", "Update", "user_id", user.ID, "error", err)
		err = fmt.Errorf("failed to update user: %w", err)
		return err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		err = pkgerrors.ErrUserNotFound
		return err
	}

	slog.Info("user updated", "method", "Update", "user_id", user.ID)
	return nil
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id int32) (err error) {
	ctx, span, done := startCall(ctx, userTracer, "DeleteUser")
	defer done(&err)
	span.SetAttributes(attribute.Int("user_id", int(id)))

	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to delete user", "method", "Delete", "user_id", id, "error", err)
		err = fmt.Errorf("failed to delete user: %w", err)
		return err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		err = pkgerrors.ErrUserNotFound
		return err
	}

	slog.Info("user deleted", "method", "Delete", "user_id", id)
	return nil
}

func (r *PostgresUserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
