package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrInvalidPhone       ErrCode = "INVALID_PHONE"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrStudentNotFound ErrCode = "STUDENT_NOT_FOUND"
	ErrPhoneTaken      ErrCode = "PHONE_TAKEN"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotFound        ErrCode = "EXAM_NOT_FOUND"
	ErrInvalidExam         ErrCode = "INVALID_EXAM"
	ErrUnknownQuestion     ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidChoice       ErrCode = "INVALID_CHOICE"
	ErrSubmissionInFlight  ErrCode = "SUBMISSION_IN_FLIGHT"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionFailed    ErrCode = "SUBMISSION_FAILED"
	ErrAttemptClosed       ErrCode = "ATTEMPT_CLOSED"
	ErrUnknownAction       ErrCode = "UNKNOWN_ACTION"
	ErrStreamingNotAllowed ErrCode = "STREAMING_UNSUPPORTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect password."
	case ErrInvalidPhone:
		return "Please enter a valid phone number (10 to 20 digits)."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to the administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrStudentNotFound:
		return "This student is not registered."
	case ErrPhoneTaken:
		return "This phone number is already registered."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotFound:
		return "This exam does not exist."
	case ErrInvalidExam:
		return "The exam definition is invalid."
	case ErrUnknownQuestion:
		return "This question is not part of the exam."
	case ErrInvalidChoice:
		return "The selected option does not exist."
	case ErrSubmissionInFlight:
		return "Your answers are being submitted."
	case ErrAlreadySubmitted:
		return "This exam has already been submitted."
	case ErrSubmissionFailed:
		return "Your answers could not be submitted. Please try again."
	case ErrAttemptClosed:
		return "This attempt has been closed. Please reopen the exam."
	case ErrUnknownAction:
		return "Unknown action."
	case ErrStreamingNotAllowed:
		return "Streaming is not supported by this connection."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
