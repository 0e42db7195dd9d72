package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"loancollect/database"
	"loancollect/utils"
)

// LoginResult is the identity returned to the frontend after sign in
type LoginResult struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"token,omitempty"`
}

// Claims is the JWT payload issued at login
type Claims struct {
	UserID  uint   `json:"user_id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// UserService signs operators in and issues their tokens
type UserService struct {
	store  database.Store
	jwtKey []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewUserService creates a UserService, tokens live for ttl
func NewUserService(store database.Store, jwtKey string, ttl time.Duration) *UserService {
	return &UserService{
		store:  store,
		jwtKey: []byte(jwtKey),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Login checks the operator's credentials. The email is matched lower-cased
// and a blocked account is refused before the password is looked at.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, newValidationError("Missing email or password")
	}

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, newStoreError("find user", "Login failed", err)
	}

	if user.Blocked {
		return nil, errAccountBlocked
	}

	if err := utils.VerifyPassword(password, user.Password); err != nil {
		if errors.Is(err, utils.ErrPasswordMismatch) {
			return nil, errWrongPassword
		}
		return nil, newStoreError("verify password", "Login failed", err)
	}

	token, err := s.generateToken(user.ID, user.Name, user.IsAdmin)
	if err != nil {
		return nil, newStoreError("sign token", "Login failed", err)
	}

	utils.LogInfo("user %d signed in", user.ID)
	return &LoginResult{
		ID:      user.ID,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
		Token:   token,
	}, nil
}

func (s *UserService) generateToken(userID uint, name string, isAdmin bool) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:  userID,
		Name:    name,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtKey)
}

// ParseToken verifies a token issued by Login and returns its claims.
func ParseToken(tokenString string, key []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
