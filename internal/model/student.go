package model

import (
	"time"

	"github.com/google/uuid"
)

// Student is a registered student. Phone is unique and stored without
// whitespace. Name and level are whatever the student last declared.
type Student struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	LevelID   PrepLevel `json:"level_id"`
	LoginDate time.Time `json:"login_date"`
	LastSeen  time.Time `json:"last_seen"`
}

// StudentLoginRequest is the payload for student sign-in.
// Phone is normalized (whitespace stripped) before the length check.
type StudentLoginRequest struct {
	Name    string    `json:"name" binding:"required,min=2,max=100"`
	Phone   string    `json:"phone" binding:"required,phone"`
	LevelID PrepLevel `json:"level_id" binding:"required,prep_level"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

// UpdateStudentRequest is the admin payload for correcting a student.
// Omitted fields keep their value.
type UpdateStudentRequest struct {
	Name    *string    `json:"name" binding:"omitempty,min=2,max=100"`
	Phone   *string    `json:"phone" binding:"omitempty,phone"`
	LevelID *PrepLevel `json:"level_id" binding:"omitempty,prep_level"`
}
