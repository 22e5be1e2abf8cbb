package services

// Kind classifies a service error for the transport layer.
type Kind int

const (
	// KindValidation means the caller sent unusable input.
	KindValidation Kind = iota + 1
	// KindAuthentication means credentials or a reset code were rejected.
	KindAuthentication
	// KindNotFound means the addressed resource does not exist.
	KindNotFound
)

// Error is a failure whose Message is safe to show to API clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewValidationError returns a KindValidation error with msg.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

var (
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Message: "Invalid email or password"}
	ErrAccountInactive    = &Error{Kind: KindAuthentication, Message: "Account is deactivated"}
	ErrEmailTaken         = &Error{Kind: KindValidation, Message: "Email already registered"}
	ErrInvalidResetCode   = &Error{Kind: KindValidation, Message: "Invalid email or OTP"}
	ErrNoResetRequested   = &Error{Kind: KindValidation, Message: "No password reset request found"}
	ErrResetCodeExpired   = &Error{Kind: KindValidation, Message: "OTP has expired"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Message: "User not found"}
)
