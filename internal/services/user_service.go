package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/auth"
	"github.com/patrimonio/patrimonio-webapi/internal/models"
	"github.com/patrimonio/patrimonio-webapi/internal/repository"
	pkgerrors "github.com/patrimonio/patrimonio-webapi/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateUserInput replaces the user's fields. An empty Password keeps the
// current one.
type UpdateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type UserService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Create(ctx context.Context, in CreateUserInput) (*models.User, error)
	Get(ctx context.Context, id int32) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id int32, in UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, id int32) error
	EnsureAdmin(ctx context.Context, name, email, password string) error
}

type userService struct {
	userRepo repository.UserRepository
	hasher   auth.PasswordHasher
	tokens   TokenIssuer
}

func NewUserService(userRepo repository.UserRepository, hasher auth.PasswordHasher, tokens TokenIssuer) *userService {
	return &userService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// domainError keeps the listed sentinels visible to callers and hides
// everything else behind ErrInternal.
func domainError(err error, msg string, keep ...error) error {
	for _, sentinel := range keep {
		if stderrors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %s", pkgerrors.ErrInternal, msg)
}

func (s *userService) Login(ctx context.Context, email, password string) (string, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	if email == "" || password == "" {
		span.SetStatus(codes.Error, "empty email or password")
		return "", pkgerrors.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			span.SetStatus(codes.Error, "unknown email")
			slog.Warn("login with unknown email", "email", email)
			return "", pkgerrors.ErrInvalidCredentials
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		slog.Error("failed to get user for login", "email", email, "error", err)
		return "", fmt.Errorf("%w: failed to get user", pkgerrors.ErrInternal)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		span.SetStatus(codes.Error, "wrong password")
		if !stderrors.Is(err, pkgerrors.ErrInvalidCredentials) {
			slog.Error("failed to compare password", "user_id", user.ID, "error", err)
		}
		return "", pkgerrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token generation failed")
		slog.Error("failed to issue token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to issue token", pkgerrors.ErrInternal)
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return token, nil
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "CreateUser")
	defer span.End()

	if in.Password == "" {
		span.SetStatus(codes.Error, "empty password")
		return nil, fmt.Errorf("%w: password is required", pkgerrors.ErrInvalidInput)
	}
	if !models.ValidRole(in.Role) {
		span.SetStatus(codes.Error, "unknown role")
		return nil, fmt.Errorf("%w: unknown role %q", pkgerrors.ErrInvalidInput, in.Role)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "email", in.Email, "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		return nil, domainError(err, "failed to create user", pkgerrors.ErrUserAlreadyExists, pkgerrors.ErrInvalidInput)
	}

	span.SetAttributes(attribute.Int("user_id", int(user.ID)))
	return user, nil
}

func (s *userService) Get(ctx context.Context, id int32) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "GetUser")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, domainError(err, "failed to get user", pkgerrors.ErrUserNotFound)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "ListUsers")
	defer span.End()

	users, err := s.userRepo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user listing failed")
		return nil, domainError(err, "failed to list users")
	}
	return users, nil
}

func (s *userService) Update(ctx context.Context, id int32, in UpdateUserInput) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", int(id)))

	if !models.ValidRole(in.Role) {
		span.SetStatus(codes.Error, "unknown role")
		return nil, fmt.Errorf("%w: unknown role %q", pkgerrors.ErrInvalidInput, in.Role)
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, domainError(err, "failed to get user", pkgerrors.ErrUserNotFound)
	}

	user.Name = in.Name
	user.Email = in.Email
	user.Role = in.Role
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "password hashing failed")
			slog.Error("failed to hash password", "user_id", id, "error", err)
			return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
		}
		user.PasswordHash = hash
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user update failed")
		return nil, domainError(err, "failed to update user",
			pkgerrors.ErrUserNotFound, pkgerrors.ErrUserAlreadyExists, pkgerrors.ErrInvalidInput)
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id int32) error {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", int(id)))

	if err := s.userRepo.Delete(ctx, id); err != nil {
		span.SetStatus(codes.Error, "user deletion failed")
		return domainError(err, "failed to delete user", pkgerrors.ErrUserNotFound)
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator when no user with email
// exists yet. An empty email disables the bootstrap.
func (s *userService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" {
		return nil
	}
	if password == "" {
		return fmt.Errorf("%w: admin password is required", pkgerrors.ErrInvalidInput)
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	admin, err := s.Create(ctx, CreateUserInput{Name: name, Email: email, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	slog.Info("bootstrap admin created", "user_id", admin.ID, "email", email)
	return nil
}
