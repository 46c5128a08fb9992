package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scienceprep/exam-backend/internal/config"
	"github.com/scienceprep/exam-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// memRegistry mirrors the students upsert in memory.
type memRegistry struct {
	mu      sync.Mutex
	byPhone map[string]*model.Student
	err     error
	clock   time.Time
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		byPhone: make(map[string]*model.Student),
		clock:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (m *memRegistry) Register(_ context.Context, s *model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.clock = m.clock.Add(time.Minute)
	known, ok := m.byPhone[s.Phone]
	if !ok {
		known = &model.Student{ID: uuid.New(), Phone: s.Phone, LoginDate: m.clock}
		m.byPhone[s.Phone] = known
	}
	known.Name, known.LevelID, known.LastSeen = s.Name, s.LevelID, m.clock
	*s = *known
	return nil
}

func (m *memRegistry) GetByPhone(_ context.Context, phone string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byPhone[phone]
	if !ok {
		return nil, ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

func testAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass-1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return NewAuthService(&config.Config{
		JWTSecret:         "test-secret",
		JWTExpiry:         time.Hour,
		BcryptCost:        bcrypt.MinCost,
		AdminPasswordHash: string(hash),
	}, newMemRegistry())
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"01012345678", "01012345678"},
		{" 010 1234 5678 ", "01012345678"},
		{"010\t1234\n5678", "01012345678"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStudentLogin(t *testing.T) {
	svc := testAuthService(t)

	tests := []struct {
		name    string
		req     model.StudentLoginRequest
		wantErr error
	}{
		{"valid", model.StudentLoginRequest{Name: " Mona ", Phone: "010 1234 5678", LevelID: model.PrepLevelSecond}, nil},
		{"short phone", model.StudentLoginRequest{Name: "Mona", Phone: "012 345", LevelID: model.PrepLevelSecond}, ErrInvalidPhone},
		{"too long phone", model.StudentLoginRequest{Name: "Mona", Phone: strings.Repeat("0", 40), LevelID: model.PrepLevelSecond}, ErrInvalidPhone},
		{"unknown level", model.StudentLoginRequest{Name: "Mona", Phone: "01012345678", LevelID: "4th-prep"}, ErrInvalidLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.StudentLogin(context.Background(), &tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("StudentLogin() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if resp.Student.Name != "Mona" || resp.Student.Phone != "01012345678" {
				t.Errorf("student = %+v", resp.Student)
			}

			claims, err := svc.ValidateToken(resp.Token)
			if err != nil {
				t.Fatalf("ValidateToken: %v", err)
			}
			if claims.TokenType != TokenTypeStudent || claims.LevelID != model.PrepLevelSecond {
				t.Errorf("claims = %+v", claims)
			}
			if id := claims.Identity(); id.Phone != "01012345678" || id.Name != "Mona" || id.Level != model.PrepLevelSecond {
				t.Errorf("Identity() = %+v", id)
			}
		})
	}
}

func TestStudentLoginRegisters(t *testing.T) {
	svc := testAuthService(t)
	ctx := context.Background()

	first, err := svc.StudentLogin(ctx, &model.StudentLoginRequest{Name: "Mona", Phone: "010 1234 5678", LevelID: model.PrepLevelFirst})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if first.Student.ID == uuid.Nil || first.Student.LoginDate.IsZero() {
		t.Fatalf("student not registered: %+v", first.Student)
	}

	again, err := svc.StudentLogin(ctx, &model.StudentLoginRequest{Name: "Mona Ali", Phone: "01012345678", LevelID: model.PrepLevelSecond})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.Student.ID != first.Student.ID || !again.Student.LoginDate.Equal(first.Student.LoginDate) {
		t.Errorf("same phone registered twice: %+v then %+v", first.Student, again.Student)
	}
	if !again.Student.LastSeen.After(first.Student.LastSeen) {
		t.Errorf("last_seen not refreshed: %v -> %v", first.Student.LastSeen, again.Student.LastSeen)
	}
	if again.Student.Name != "Mona Ali" || again.Student.LevelID != model.PrepLevelSecond {
		t.Errorf("declared details not kept: %+v", again.Student)
	}

	profile, err := svc.StudentProfile(ctx, "01012345678")
	if err != nil || profile.ID != first.Student.ID {
		t.Errorf("StudentProfile() = %+v, %v", profile, err)
	}
}

func TestStudentLoginRegistryDown(t *testing.T) {
	reg := newMemRegistry()
	reg.err = errors.New("connection refused")
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}, reg)

	resp, err := svc.StudentLogin(context.Background(), &model.StudentLoginRequest{Name: "Mona", Phone: "01012345678", LevelID: model.PrepLevelFirst})
	if err == nil || resp != nil {
		t.Fatalf("StudentLogin() = %+v, %v; want error", resp, err)
	}
}

func TestApplyStudentUpdate(t *testing.T) {
	name := func(v string) *string { return &v }
	level := func(v model.PrepLevel) *model.PrepLevel { return &v }

	tests := []struct {
		name    string
		req     model.UpdateStudentRequest
		want    model.Student
		wantErr error
	}{
		{"nothing", model.UpdateStudentRequest{}, model.Student{Name: "Mona", Phone: "01012345678", LevelID: model.PrepLevelFirst}, nil},
		{"all fields", model.UpdateStudentRequest{Name: name(" Mona Ali "), Phone: name("011 9876 5432"), LevelID: level(model.PrepLevelThird)},
			model.Student{Name: "Mona Ali", Phone: "01198765432", LevelID: model.PrepLevelThird}, nil},
		{"blank name", model.UpdateStudentRequest{Name: name("   ")}, model.Student{}, ErrInvalidStudent},
		{"short phone", model.UpdateStudentRequest{Phone: name("0101")}, model.Student{}, ErrInvalidPhone},
		{"too long phone", model.UpdateStudentRequest{Phone: name(strings.Repeat("1", 21))}, model.Student{}, ErrInvalidPhone},
		{"bad level", model.UpdateStudentRequest{LevelID: level("4th-prep")}, model.Student{}, ErrInvalidLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.Student{Name: "Mona", Phone: "01012345678", LevelID: model.PrepLevelFirst}
			err := ApplyStudentUpdate(&s, &tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ApplyStudentUpdate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && s != tt.want {
				t.Errorf("student = %+v, want %+v", s, tt.want)
			}
		})
	}
}

func TestAdminLogin(t *testing.T) {
	svc := testAuthService(t)

	if _, err := svc.AdminLogin(&model.AdminLoginRequest{Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}

	resp, err := svc.AdminLogin(&model.AdminLoginRequest{Password: "admin-pass-1"})
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	claims, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeAdmin {
		t.Errorf("TokenType = %s, want admin", claims.TokenType)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := testAuthService(t)
	resp, err := svc.StudentLogin(context.Background(), &model.StudentLoginRequest{Name: "Mona", Phone: "01012345678", LevelID: model.PrepLevelFirst})
	if err != nil {
		t.Fatalf("StudentLogin: %v", err)
	}

	other := NewAuthService(&config.Config{JWTSecret: "another-secret", JWTExpiry: time.Hour}, newMemRegistry())
	if _, err := other.ValidateToken(resp.Token); err == nil {
		t.Error("token accepted with a different secret")
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.ValidateToken(resp.Token); err == nil {
		t.Error("expired token accepted")
	}

	if _, err := svc.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token accepted")
	}
}
