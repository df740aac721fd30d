package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/config"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/middleware"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

// Имена событий аутентификации в логах
const (
	EventSignedUp       = "signed_up"
	EventSignedIn       = "signed_in"
	EventTokenRefreshed = "token_refreshed"
	EventSignedOut      = "signed_out"
)

const invalidCredentials = "Неверный email или пароль"

// AccountStore операции над учётными записями и сессиями
type AccountStore interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	TouchSignIn(ctx context.Context, id uuid.UUID) error
	CreateSession(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt time.Time) (*models.AuthSession, error)
	GetSessionByHash(ctx context.Context, tokenHash string) (*models.AuthSession, error)
	RevokeSession(ctx context.Context, id uuid.UUID) error
	RotateSession(ctx context.Context, oldID, accountID uuid.UUID, newHash string, expiresAt time.Time) (*models.AuthSession, error)
}

// ProfileCreator создаёт профиль при регистрации
type ProfileCreator interface {
	Create(ctx context.Context, in models.ProfileInput) (*models.Profile, error)
}

var (
	_ AccountStore   = (*db.AccountRepository)(nil)
	_ ProfileCreator = (*db.ProfileRepository)(nil)
)

// SignUpRequest тело запроса регистрации
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Username string `json:"username" validate:"omitempty,username"`
	FullName string `json:"full_name" validate:"notblank,min=2,max=100"`
}

// normalize обрезает пробелы до проверки; пароль не трогаем
func (r *SignUpRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	r.FullName = strings.TrimSpace(r.FullName)
}

// SignInRequest тело запроса входа
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *SignInRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// RefreshRequest тело запросов обновления и завершения сессии
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Session пара токенов, выдаваемая клиенту
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ProfileError причина, по которой профиль не создан при регистрации
type ProfileError struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// SignUpResult результат регистрации. Profile == nil, если профиль создать не удалось;
// учётная запись при этом остаётся.
type SignUpResult struct {
	User         models.User     `json:"user"`
	Session      Session         `json:"session"`
	Profile      *models.Profile `json:"profile"`
	ProfileError *ProfileError   `json:"profile_error,omitempty"`
}

// SignInResult результат входа или обновления токена
type SignInResult struct {
	User    models.User `json:"user"`
	Session Session     `json:"session"`
}

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	accounts   AccountStore
	profiles   ProfileCreator
	jwtService *utils.JWTService
	limiter    *middleware.RateLimiter
	bcryptCost int
	now        func() time.Time
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, accounts AccountStore, profiles ProfileCreator, jwtService *utils.JWTService) *AuthService {
	perMinute := cfg.RateLimit.AuthPerMinute
	return &AuthService{
		cfg:        cfg,
		accounts:   accounts,
		profiles:   profiles,
		jwtService: jwtService,
		limiter:    middleware.NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Close останавливает фоновую очистку ограничителя запросов
func (s *AuthService) Close() {
	s.limiter.Stop()
}

// SignUp создаёт учётную запись, открывает сессию и создаёт профиль
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	req.normalize()
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "не удалось обработать пароль", err)
	}

	account, err := s.accounts.CreateAccount(ctx, req.Email, string(hash))
	if err != nil {
		return nil, err
	}

	session, err := s.openSession(ctx, account)
	if err != nil {
		return nil, err
	}

	result := &SignUpResult{User: userOf(account), Session: *session}

	username := req.Username
	if username == "" {
		username = account.ID.String()[:8]
	}
	profile, err := s.profiles.Create(ctx, models.ProfileInput{
		ID:       account.ID,
		Username: username,
		FullName: req.FullName,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":  account.ID,
			"username": username,
		}).WithError(err).Warn("⚠️ Учётная запись создана, но профиль не создан")
		result.ProfileError = &ProfileError{Kind: apperr.KindOf(err), Message: apperr.Message(err)}
	} else {
		result.Profile = profile
	}

	logEvent(EventSignedUp, account.ID)
	return result, nil
}

// SignIn проверяет email и пароль и открывает сессию
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	req.normalize()
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized(invalidCredentials)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	if err := s.accounts.TouchSignIn(ctx, account.ID); err != nil {
		logrus.WithField("user_id", account.ID).WithError(err).Warn("⚠️ Не удалось обновить время входа")
	}

	session, err := s.openSession(ctx, account)
	if err != nil {
		return nil, err
	}

	logEvent(EventSignedIn, account.ID)
	return &SignInResult{User: userOf(account), Session: *session}, nil
}

// Refresh обменивает refresh-токен на новую пару; старый токен отзывается
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*SignInResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	current, err := s.activeSession(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccountByID(ctx, current.AccountID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("учётная запись не найдена")
		}
		return nil, err
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	rotated, err := s.accounts.RotateSession(ctx, current.ID, account.ID, hashToken(refreshToken), s.now().Add(s.cfg.JWT.RefreshTTL))
	if err != nil {
		return nil, err
	}

	session, err := s.session(account, refreshToken)
	if err != nil {
		return nil, err
	}

	logrus.WithField("session_id", rotated.ID).Debug("Сессия обновлена")
	logEvent(EventTokenRefreshed, account.ID)
	return &SignInResult{User: userOf(account), Session: *session}, nil
}

// SignOut отзывает сессию пользователя. Неизвестный или уже отозванный токен не ошибка.
func (s *AuthService) SignOut(ctx context.Context, userID uuid.UUID, req RefreshRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	current, err := s.accounts.GetSessionByHash(ctx, hashToken(req.RefreshToken))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if current.AccountID != userID {
		return apperr.Forbidden("сессия принадлежит другому пользователю")
	}
	if current.RevokedAt != nil {
		return nil
	}

	if err := s.accounts.RevokeSession(ctx, current.ID); err != nil {
		return err
	}

	logEvent(EventSignedOut, userID)
	return nil
}

// CurrentUser возвращает пользователя по ID из access-токена
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	account, err := s.accounts.GetAccountByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("учётная запись не найдена")
		}
		return nil, err
	}
	user := userOf(account)
	return &user, nil
}

func (s *AuthService) activeSession(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	current, err := s.accounts.GetSessionByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("недействительный refresh-токен")
		}
		return nil, err
	}
	if !current.Active(s.now()) {
		return nil, apperr.Unauthorized("сессия истекла или завершена")
	}
	return current, nil
}

func (s *AuthService) openSession(ctx context.Context, account *models.Account) (*Session, error) {
	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.CreateSession(ctx, account.ID, hashToken(refreshToken), s.now().Add(s.cfg.JWT.RefreshTTL)); err != nil {
		return nil, err
	}
	return s.session(account, refreshToken)
}

func (s *AuthService) session(account *models.Account, refreshToken string) (*Session, error) {
	accessToken, expiresAt, err := s.jwtService.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "не удалось создать токен", err)
	}
	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

func userOf(account *models.Account) models.User {
	return models.User{ID: account.ID, Email: account.Email}
}

func logEvent(event string, userID uuid.UUID) {
	logrus.WithFields(logrus.Fields{
		"event":   event,
		"user_id": userID,
	}).Info("Событие аутентификации")
}

// newRefreshToken случайный непрозрачный токен; в базе хранится только его хеш
func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Wrap(apperr.KindUnknown, "не удалось создать refresh-токен", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
