package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: User & Auth module errors
// 12000-12999: Benchmark module errors
// 13000-13999: Submission & Evaluation module errors
// 14000-14999: Challenge & Badge module errors
// 15000-15999: Admin & Permission errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Storage errors (10300-10399)
	StorageError ErrorCode = 10300

	// Validation errors (10400-10499)
	ValidationFailed ErrorCode = 10400

	// ========== User & Auth Module Errors (11000-11999) ==========

	// Authentication (11000-11099)
	InvalidCredentials    ErrorCode = 11000
	UserNotFound          ErrorCode = 11001
	TokenExpired          ErrorCode = 11002
	TokenInvalid          ErrorCode = 11003
	TokenGenerationFailed ErrorCode = 11004
	APIKeyInvalid         ErrorCode = 11005

	// Registration (11100-11199)
	EmailAlreadyExists ErrorCode = 11100
	InvalidEmail       ErrorCode = 11101
	PasswordTooWeak    ErrorCode = 11102

	// Account operations (11200-11299)
	InsufficientCredits ErrorCode = 11200
	UserUpdateFailed    ErrorCode = 11201
	APIKeyCreateFailed  ErrorCode = 11202
	APIKeyNotFound      ErrorCode = 11203

	// ========== Benchmark Module Errors (12000-12999) ==========

	BenchmarkNotFound     ErrorCode = 12000
	BenchmarkCreateFailed ErrorCode = 12001
	BenchmarkUpdateFailed ErrorCode = 12002
	BenchmarkNotApproved  ErrorCode = 12003

	// ========== Submission & Evaluation Module Errors (13000-13999) ==========

	// Submission intake (13000-13099)
	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	PayloadTooLarge        ErrorCode = 13002
	MaliciousPayload       ErrorCode = 13003
	SubmitTooFrequently    ErrorCode = 13004
	ArtifactUploadFailed   ErrorCode = 13005
	ArtifactInvalid        ErrorCode = 13006

	// Evaluation pipeline (13100-13199)
	EvaluationQueueClosed ErrorCode = 13100
	DuplicateJob          ErrorCode = 13101
	ExecutionTimeout      ErrorCode = 13102
	ExecutionFailed       ErrorCode = 13103
	JudgeFailed           ErrorCode = 13104

	// ========== Challenge & Badge Module Errors (14000-14999) ==========

	ChallengeNotFound    ErrorCode = 14000
	ChallengeResetFailed ErrorCode = 14001
	BadgeUpdateFailed    ErrorCode = 14100

	// ========== Admin & Permission Errors (15000-15999) ==========

	PermissionDenied     ErrorCode = 15000
	AdminOperationFailed ErrorCode = 15100
	FlagFailed           ErrorCode = 15101
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",

	// Storage
	StorageError: "Object storage operation failed",

	// Validation
	ValidationFailed: "Validation failed",

	// User & Auth
	InvalidCredentials:    "Invalid email or password",
	UserNotFound:          "User not found",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",
	APIKeyInvalid:         "Invalid or expired token/API key",
	EmailAlreadyExists:    "Email already exists",
	InvalidEmail:          "Invalid email format",
	PasswordTooWeak:       "Password is too weak",
	InsufficientCredits:   "Insufficient credits",
	UserUpdateFailed:      "Failed to update user",
	APIKeyCreateFailed:    "Failed to create API key",
	APIKeyNotFound:        "API key not found",

	// Benchmark
	BenchmarkNotFound:     "Benchmark not found",
	BenchmarkCreateFailed: "Failed to create benchmark",
	BenchmarkUpdateFailed: "Failed to update benchmark",
	BenchmarkNotApproved:  "Benchmark is not approved",

	// Submission & Evaluation
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	PayloadTooLarge:        "Payload too large",
	MaliciousPayload:       "Malicious code pattern detected in submission payload",
	SubmitTooFrequently:    "Submitting too frequently, please wait",
	ArtifactUploadFailed:   "Failed to upload agent artifact",
	ArtifactInvalid:        "Invalid agent artifact",
	EvaluationQueueClosed:  "Evaluation queue is not running",
	DuplicateJob:           "Submission is already queued for evaluation",
	ExecutionTimeout:       "Execution terminated: maximum timeout exceeded",
	ExecutionFailed:        "Agent execution failed",
	JudgeFailed:            "Evaluation judging failed",

	// Challenge & Badge
	ChallengeNotFound:    "No active challenge",
	ChallengeResetFailed: "Failed to reset challenge",
	BadgeUpdateFailed:    "Failed to update badges",

	// Admin & Permission
	PermissionDenied:     "Permission denied",
	AdminOperationFailed: "Admin operation failed",
	FlagFailed:           "Failed to flag submission",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == UserNotFound, c == BenchmarkNotFound,
		c == SubmissionNotFound, c == ChallengeNotFound, c == APIKeyNotFound:
		return 404
	case c >= 11000 && c < 11100: // Authentication errors
		return 401
	case c == Unauthorized:
		return 401
	case c == Forbidden, c == PermissionDenied:
		return 403
	case c == MaliciousPayload:
		return 403
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == ServiceUnavailable, c == EvaluationQueueClosed:
		return 503
	case c == ValidationFailed, c == InvalidParams, c == InvalidEmail,
		c == PasswordTooWeak, c == EmailAlreadyExists, c == PayloadTooLarge,
		c == InsufficientCredits:
		return 400
	default:
		return 500
	}
}
