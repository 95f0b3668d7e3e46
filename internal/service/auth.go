package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/gather/api/internal/database"
	"github.com/forgo/gather/api/internal/model"
	"github.com/forgo/gather/api/pkg/jwt"
)

// UserRepositoryInterface defines the repository interface
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// TokenIssuer signs access tokens
type TokenIssuer interface {
	Sign(claims jwt.Claims) (string, error)
	GetExpiration() time.Duration
}

// AuthService handles account creation and login
type AuthService struct {
	repo   UserRepositoryInterface
	tokens TokenIssuer
}

// NewAuthService creates a new auth service
func NewAuthService(repo UserRepositoryInterface, tokens TokenIssuer) *AuthService {
	return &AuthService{repo: repo, tokens: tokens}
}

// Register creates a new account. Passwords are stored as bcrypt hashes;
// the plaintext never leaves this method.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterUserRequest) (*model.User, error) {
	if !model.IsValidEmail(req.Email) {
		return nil, ErrInvalidEmail
	}
	if len(req.Password) < model.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if len(req.Password) > model.MaxPasswordLength {
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:  req.Name,
		Email: req.Email,
		Hash:  string(hash),
		Role:  model.UserRole(req.Role),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and issues an access token. A wrong email
// and a wrong password fail identically, so login cannot be used to
// probe which addresses hold accounts.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresOn := time.Now().Add(s.tokens.GetExpiration())
	token, err := s.tokens.Sign(jwt.Claims{
		Subject: user.ID,
		UserID:  user.ID,
		Email:   user.Email,
		Role:    string(user.Role),
	})
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{
		Token:     token,
		ExpiresOn: expiresOn,
		User:      user,
	}, nil
}

// GetUser retrieves a user by ID
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
