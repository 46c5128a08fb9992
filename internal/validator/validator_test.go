package validator

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/scienceprep/exam-backend/internal/model"
)

func TestCustomTags(t *testing.T) {
	Setup()

	tests := []struct {
		name      string
		req       model.StudentLoginRequest
		wantField string
	}{
		{"valid", model.StudentLoginRequest{Name: "Mona", Phone: "010 1234 5678", LevelID: model.PrepLevelThird}, ""},
		{"international", model.StudentLoginRequest{Name: "Mona", Phone: "+20 101 234 5678", LevelID: model.PrepLevelFirst}, ""},
		{"short phone", model.StudentLoginRequest{Name: "Mona", Phone: "0101 234", LevelID: model.PrepLevelFirst}, "phone"},
		{"longest phone", model.StudentLoginRequest{Name: "Mona", Phone: "+" + strings.Repeat("1", 19), LevelID: model.PrepLevelFirst}, ""},
		{"too long phone", model.StudentLoginRequest{Name: "Mona", Phone: strings.Repeat("0", 40), LevelID: model.PrepLevelFirst}, "phone"},
		{"arabic digits", model.StudentLoginRequest{Name: "Mona", Phone: "٠١٠١٢٣٤٥٦٧٨", LevelID: model.PrepLevelFirst}, "phone"},
		{"letters in phone", model.StudentLoginRequest{Name: "Mona", Phone: "0101234567x", LevelID: model.PrepLevelFirst}, "phone"},
		{"unknown level", model.StudentLoginRequest{Name: "Mona", Phone: "01012345678", LevelID: "grade-9"}, "level_id"},
		{"missing name", model.StudentLoginRequest{Phone: "01012345678", LevelID: model.PrepLevelFirst}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateStruct() = nil, want error on %s", tt.wantField)
			}
			fields := TranslateErrors(err)
			if msg, ok := fields[tt.wantField]; !ok || msg == "" {
				t.Errorf("fields = %v, want message for %s", fields, tt.wantField)
			}
		})
	}
}

func TestSetupIsIdempotent(t *testing.T) {
	Setup()
	Setup()

	req := model.AdminLoginRequest{Password: "pw"}
	fields := TranslateErrors(binding.Validator.ValidateStruct(&req))
	if fields["password"] == "" {
		t.Errorf("fields = %v, want password message", fields)
	}
}
