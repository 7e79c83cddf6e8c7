package app

import "errors"

// Kind classifies an application error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindBadRequest
	KindUploadFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindUploadFailed:
		return "upload_failed"
	default:
		return "internal"
	}
}

// Error is a classified failure with a message that is safe to show to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func badRequest(msg string) *Error { return newError(KindBadRequest, msg) }

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Msg
	}
	return "internal server error"
}

var (
	// ErrInvalidCredentials is shown for every failed login unless account
	// existence may be revealed.
	ErrInvalidCredentials = newError(KindUnauthorized, "Incorrect email or password")
	ErrUnknownAccount     = newError(KindUnauthorized, "No account found with this email")
	ErrWrongPassword      = newError(KindUnauthorized, "Incorrect password")
	ErrAccountPending     = newError(KindForbidden, "account pending manager approval")
	ErrUnauthorized       = newError(KindUnauthorized, "unauthorized")
	ErrForbidden          = newError(KindForbidden, "forbidden")

	ErrEmailTaken      = newError(KindConflict, "email already registered")
	ErrCNITaken        = newError(KindConflict, "CNI already registered")
	ErrCNETaken        = newError(KindConflict, "CNE already registered")
	ErrUserNotFound    = newError(KindNotFound, "user not found")
	ErrAlreadyActive   = newError(KindBadRequest, "user is already active")
	ErrRejectActive    = badRequest("cannot reject an active account")
	ErrBootstrapRole   = newError(KindConflict, "bootstrap email belongs to a non-manager account")
	ErrMissingIdentity = badRequest("first name, last name, email and password are required")

	ErrDefenseNotFound      = newError(KindNotFound, "defense not found")
	ErrReportNotFound       = newError(KindNotFound, "report not found")
	ErrReportFileMissing    = newError(KindNotFound, "report file not found")
	ErrNotOwner             = newError(KindForbidden, "not your defense request")
	ErrInvalidStatus        = badRequest("invalid status")
	ErrInvalidTransition    = badRequest("status transition not allowed")
	ErrInvalidDate          = badRequest("defense_date must be YYYY-MM-DD")
	ErrInvalidTime          = badRequest("defense_time must be HH:MM")
	ErrTitleRequired        = badRequest("title is required")
	ErrDomainRequired       = badRequest("domain is required")
	ErrNotPDF               = badRequest("only PDF files are accepted")
	ErrFileTooLarge         = newError(KindUploadFailed, "report exceeds the maximum upload size")
	ErrProfessorNotFound    = newError(KindNotFound, "professor not found")
	ErrJuryMemberNotFound   = newError(KindNotFound, "jury member not found")
	ErrAlreadyOnJury        = newError(KindConflict, "professor already assigned to this jury")
	ErrInvalidJuryRole      = badRequest("invalid jury role")
	ErrDefenseIDMismatch    = badRequest("thesis_defense_id does not match the path")
	ErrInvalidSuggestCount  = badRequest("n must be between 1 and 10")
	ErrNotJuryMember        = newError(KindForbidden, "not a jury member for this defense")
	ErrScoreOutOfRange      = badRequest("score must be between 0 and 20")
	ErrNotificationNotFound = newError(KindNotFound, "notification not found")
	ErrNotificationOwner    = newError(KindForbidden, "notification belongs to another user")
)

func uploadFailed(err error) *Error {
	return &Error{Kind: KindUploadFailed, Msg: "failed to store report", Err: err}
}
