package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/email"
	"auth-service/internal/repository"
)

// UserService coordina registro, verificación de email y login.
type UserService struct {
	logger         *zap.Logger
	users          repository.UserRepository
	hasher         PasswordHasher
	tokens         *TokenService
	emailSender    email.Sender
	accessTokenTTL time.Duration
}

var (
	ErrUserExists         = errors.New("email or username already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired verification token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email is already verified")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrUnauthenticated    = errors.New("could not validate credentials")
)

func NewUserService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens *TokenService, emailSender email.Sender, accessTokenTTL time.Duration) *UserService {
	if accessTokenTTL <= 0 {
		accessTokenTTL = 30 * time.Minute
	}
	return &UserService{
		logger:         logger,
		users:          users,
		hasher:         hasher,
		tokens:         tokens,
		emailSender:    emailSender,
		accessTokenTTL: accessTokenTTL,
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// AccessToken es la credencial devuelta por Login.
type AccessToken struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
}

// Register crea un usuario sin verificar y envía el correo de verificación.
// El fallo del correo no frustra el registro.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	_, err := s.users.GetByEmailOrUsername(ctx, emailAddr, username)
	if err == nil {
		return domain.User{}, ErrUserExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	token, err := GenerateVerificationToken()
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		Email:             emailAddr,
		Username:          username,
		PasswordHash:      passwordHash,
		IsVerified:        false,
		VerificationToken: token,
		CreatedAt:         time.Now().UTC(),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	if s.emailSender == nil {
		s.logger.Warn("verification email skipped, sender not configured", zap.String("email", emailAddr))
		return created, nil
	}
	if err := s.emailSender.SendVerification(ctx, emailAddr, username, token); err != nil {
		s.logger.Warn("send verification email failed", zap.Error(err), zap.String("email", emailAddr))
	}

	return created, nil
}

// VerifyEmail consume el token opaco: a lo sumo una llamada concurrente
// observa la transición a verificado, las demás reciben ErrInvalidToken.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrInvalidToken
	}

	user, err := s.users.ConsumeVerificationToken(ctx, token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidToken
		}
		return domain.User{}, err
	}

	if s.emailSender != nil {
		if err := s.emailSender.SendWelcome(ctx, user.Email, user.Username); err != nil {
			s.logger.Warn("send welcome email failed", zap.Error(err), zap.String("email", user.Email))
		}
	}

	return user, nil
}

// Login valida credenciales y emite un access token con subject = username.
// El estado de verificación se chequea antes que la contraseña.
func (s *UserService) Login(ctx context.Context, username, password string) (AccessToken, error) {
	if s.users == nil {
		return AccessToken{}, errors.New("user service not configured")
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AccessToken{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessToken{}, ErrInvalidCredentials
		}
		return AccessToken{}, err
	}

	if !user.IsVerified {
		return AccessToken{}, ErrEmailNotVerified
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return AccessToken{}, ErrInvalidCredentials
	}

	signed, err := s.tokens.Issue(user.Username, s.accessTokenTTL)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, TokenType: "bearer"}, nil
}

// ResendVerification reemplaza el token pendiente y reenvía el correo.
// A diferencia de Register, el fallo del correo sí frustra la operación.
func (s *UserService) ResendVerification(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrUserNotFound
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	if user.IsVerified {
		return ErrAlreadyVerified
	}

	token, err := GenerateVerificationToken()
	if err != nil {
		return err
	}
	if err := s.users.UpdateVerificationToken(ctx, user.ID, token); err != nil {
		// El usuario pudo verificarse entre la lectura y este reemplazo.
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyVerified
		}
		return err
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerification(ctx, user.Email, user.Username, token); err != nil {
		s.logger.Warn("resend verification email failed", zap.Error(err), zap.String("email", user.Email))
		return ErrEmailSendFailure
	}

	return nil
}

// CurrentUser resuelve el usuario detrás de un access token.
func (s *UserService) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	subject, err := s.tokens.Validate(token)
	if err != nil {
		return domain.User{}, ErrUnauthenticated
	}

	user, err := s.users.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
