package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/examsession"
	"github.com/scienceprep/exam-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPhone       = errors.New("phone must have 10 to 20 characters")
	ErrInvalidLevel       = errors.New("unknown level")
	ErrInvalidStudent     = errors.New("invalid student")
)

// Phone length bounds after whitespace removal.
const (
	MinPhoneLength = 10
	MaxPhoneLength = 20
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
// Student identity is self-declared and never verified.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType       `json:"token_type"`
	Name      string          `json:"name,omitempty"`     // Student only
	Phone     string          `json:"phone,omitempty"`    // Student only
	LevelID   model.PrepLevel `json:"level_id,omitempty"` // Student only
}

// Identity returns the student identity carried by the token.
func (c *Claims) Identity() examsession.Identity {
	return examsession.Identity{Name: c.Name, Phone: c.Phone, Level: c.LevelID}
}

// StudentRegistry records student logins.
type StudentRegistry interface {
	Register(ctx context.Context, student *model.Student) error
	GetByPhone(ctx context.Context, phone string) (*model.Student, error)
}

// AuthService handles authentication and JWT issuing.
type AuthService struct {
	cfg      *config.Config
	students StudentRegistry
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, students StudentRegistry) *AuthService {
	return &AuthService{cfg: cfg, students: students, now: time.Now}
}

// NormalizePhone removes every whitespace character.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

func checkPhone(phone string) error {
	if len(phone) < MinPhoneLength || len(phone) > MaxPhoneLength {
		return ErrInvalidPhone
	}
	return nil
}

// StudentLogin registers (or refreshes) a self-declared student and issues
// their token.
func (s *AuthService) StudentLogin(ctx context.Context, req *model.StudentLoginRequest) (*model.StudentLoginResponse, error) {
	student := model.Student{
		Name:    strings.TrimSpace(req.Name),
		Phone:   NormalizePhone(req.Phone),
		LevelID: req.LevelID,
	}
	if err := checkPhone(student.Phone); err != nil {
		return nil, err
	}
	if !student.LevelID.Valid() {
		return nil, ErrInvalidLevel
	}
	if err := s.students.Register(ctx, &student); err != nil {
		return nil, err
	}

	token, err := s.sign(Claims{
		RegisteredClaims: s.registered(student.Phone),
		TokenType:        TokenTypeStudent,
		Name:             student.Name,
		Phone:            student.Phone,
		LevelID:          student.LevelID,
	})
	if err != nil {
		return nil, err
	}
	return &model.StudentLoginResponse{Token: token, Student: student}, nil
}

// StudentProfile returns the registry entry for the token's phone.
func (s *AuthService) StudentProfile(ctx context.Context, phone string) (*model.Student, error) {
	return s.students.GetByPhone(ctx, phone)
}

// AdminLogin checks the password against the configured bcrypt hash.
func (s *AuthService) AdminLogin(req *model.AdminLoginRequest) (*model.AdminLoginResponse, error) {
	if s.cfg.AdminPasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.sign(Claims{
		RegisteredClaims: s.registered("admin"),
		TokenType:        TokenTypeAdmin,
	})
	if err != nil {
		return nil, err
	}
	return &model.AdminLoginResponse{Token: token}, nil
}

func (s *AuthService) registered(subject string) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
	}
}

func (s *AuthService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
