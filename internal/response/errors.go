package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session engine ────────────────────────────────────────────────
	ErrTestNotAvailable       ErrCode = "TEST_NOT_AVAILABLE"
	ErrTestNotPublished       ErrCode = "TEST_NOT_PUBLISHED"
	ErrTestCompleted          ErrCode = "TEST_COMPLETED"
	ErrSessionActiveElsewhere ErrCode = "SESSION_ACTIVE_ELSEWHERE"
	ErrDeadlineExceeded       ErrCode = "DEADLINE_EXCEEDED"
	ErrSessionNotActive       ErrCode = "SESSION_NOT_ACTIVE"
	ErrNotTestAuthor          ErrCode = "NOT_TEST_AUTHOR"
	ErrNoQuestions            ErrCode = "NO_QUESTIONS"
	ErrTestNotDraft           ErrCode = "TEST_NOT_DRAFT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Username or password is incorrect."
	case ErrSessionInvalidated:
		return "Your login session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrTeacherAccessOnly:
		return "This resource is restricted to teachers."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrTestNotAvailable:
		return "This test is not currently available."
	case ErrTestNotPublished:
		return "This test has not been published."
	case ErrTestCompleted:
		return "This test has already been completed."
	case ErrSessionActiveElsewhere:
		return "This test is in progress on another device."
	case ErrDeadlineExceeded:
		return "The time for this test has run out."
	case ErrSessionNotActive:
		return "No active session for this test."
	case ErrNotTestAuthor:
		return "You are not the author of this test."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrTestNotDraft:
		return "This test is not in DRAFT status."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
