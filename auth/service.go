package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals a wrong account id or secret.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakSecret signals the secret doesn't meet requirements.
	ErrWeakSecret = errors.New("auth: secret must be at least 16 characters")
)

// Service handles service-account access control for the review API.
type Service struct {
	repo      Repository
	jwtSecret []byte
}

// NewService creates a new access-control service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
	}
}

// CreateAccount provisions a new service account.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if len(req.Secret) < 16 {
		return nil, ErrWeakSecret
	}
	if req.Name == "" {
		return nil, fmt.Errorf("auth: account name is required")
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleService
	}
	if !isValidRole(role) {
		return nil, fmt.Errorf("auth: invalid role %q", role)
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash secret: %w", err)
	}

	account, err := s.repo.CreateAccount(ctx, CreateAccountParams{
		Name:       req.Name,
		SecretHash: string(secretHash),
		Role:       role,
	})
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// IssueToken authenticates an account and returns a short-lived JWT.
func (s *Service) IssueToken(ctx context.Context, req TokenRequest) (string, error) {
	account, err := s.repo.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(req.Secret)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.generateToken(account.ID, account.Role)
	if err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return token, nil
}

// VerifyToken validates a bearer token and returns the account identity.
func (s *Service) VerifyToken(tokenString string) (string, Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("auth: parse token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		accountID, ok := claims["account_id"].(string)
		if !ok {
			return "", "", fmt.Errorf("auth: invalid account_id in token")
		}
		roleStr, ok := claims["role"].(string)
		if !ok {
			return "", "", fmt.Errorf("auth: invalid role in token")
		}
		role := Role(roleStr)
		if !isValidRole(role) {
			return "", "", fmt.Errorf("auth: invalid role %q in token", roleStr)
		}
		return accountID, role, nil
	}

	return "", "", fmt.Errorf("auth: invalid token")
}

func (s *Service) generateToken(accountID string, role Role) (string, error) {
	claims := jwt.MapClaims{
		"account_id": accountID,
		"role":       role,
		"exp":        time.Now().Add(time.Hour).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func isValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleReviewer, RoleService:
		return true
	default:
		return false
	}
}
