package main

import (
	"testing"

	"github.com/scienceprep/exam-backend/internal/service"
)

func TestDemoStudents(t *testing.T) {
	students := demoStudents(40)
	if len(students) != 40 {
		t.Fatalf("len = %d, want 40", len(students))
	}

	phones := make(map[string]bool)
	seen := make(map[string]bool)
	for _, s := range students {
		if phones[s.Phone] {
			t.Errorf("duplicate phone %s", s.Phone)
		}
		phones[s.Phone] = true
		if seen[s.Name] {
			t.Errorf("duplicate name %s", s.Name)
		}
		seen[s.Name] = true

		if n := len(service.NormalizePhone(s.Phone)); n < service.MinPhoneLength || n > service.MaxPhoneLength {
			t.Errorf("phone %s has length %d", s.Phone, n)
		}
		if !s.LevelID.Valid() {
			t.Errorf("%s has level %q", s.Name, s.LevelID)
		}
	}
	if students[15].Name != "Mona Ali 2" {
		t.Errorf("students[15] = %q, want second round name", students[15].Name)
	}
}
