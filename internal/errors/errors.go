package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// 错误码
const (
	CodeConfigurationMissing  = "configuration_missing"
	CodeMissingInstallationID = "missing_installation_id"
	CodeNoSyncDirectory       = "no_sync_directory"
	CodeNoStorageRoot         = "no_storage_root"
	CodeStoreUnreadable       = "store_unreadable"
	CodeDeleteFailed          = "delete_failed"
	CodeSyncCollaborator      = "sync_collaborator_failure"
	CodeDeployerBusy          = "deployer_busy"
	CodeAlreadyRunning        = "already_running"
	CodeInvalidArgument       = "invalid_argument"
	CodeHistoryDisabled       = "history_disabled"
	CodeInternal              = "internal_error"
)

// Error is the error type shared by every package of the cleaner.
// Two errors are considered equal by errors.Is when their codes match.
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
	HTTPCode int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code string, httpCode int, cause error, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
		HTTPCode: httpCode,
	}
}

// Sentinels for errors.Is checks.
var (
	ErrConfigurationMissing  = &Error{Code: CodeConfigurationMissing}
	ErrMissingInstallationID = &Error{Code: CodeMissingInstallationID}
	ErrNoSyncDirectory       = &Error{Code: CodeNoSyncDirectory}
	ErrNoStorageRoot         = &Error{Code: CodeNoStorageRoot}
	ErrStoreUnreadable       = &Error{Code: CodeStoreUnreadable}
	ErrDeleteFailed          = &Error{Code: CodeDeleteFailed}
	ErrSyncCollaborator      = &Error{Code: CodeSyncCollaborator}
	ErrDeployerBusy          = &Error{Code: CodeDeployerBusy}
	ErrAlreadyRunning        = &Error{Code: CodeAlreadyRunning}
	ErrHistoryDisabled       = &Error{Code: CodeHistoryDisabled}
)

func ConfigurationMissing(path string, cause error) *Error {
	return New(CodeConfigurationMissing, http.StatusInternalServerError, cause, "installation descriptor unavailable: %s", path)
}

func MissingInstallationID(path string) *Error {
	return New(CodeMissingInstallationID, http.StatusInternalServerError, nil, "installation_id is empty in %s", path)
}

// NoSyncDirectory aggregates the failures of every resolution step.
func NoSyncDirectory(causes ...error) *Error {
	return New(CodeNoSyncDirectory, http.StatusNotFound, errors.Join(causes...), "no sync directory could be resolved")
}

func NoStorageRoot(causes ...error) *Error {
	return New(CodeNoStorageRoot, http.StatusNotFound, errors.Join(causes...), "no storage root could be resolved")
}

func StoreUnreadable(path string, cause error) *Error {
	return New(CodeStoreUnreadable, http.StatusInternalServerError, cause, "store %s could not be compacted", path)
}

func DeleteFailed(path string, cause error) *Error {
	return New(CodeDeleteFailed, http.StatusInternalServerError, cause, "failed to delete %s", path)
}

func SyncCollaboratorFailed(directive string, cause error) *Error {
	return New(CodeSyncCollaborator, http.StatusBadGateway, cause, "deployer directive %q failed", directive)
}

func DeployerBusy(name string) *Error {
	return New(CodeDeployerBusy, http.StatusConflict, nil, "%s is still running", name)
}

func AlreadyRunning(runID string) *Error {
	return New(CodeAlreadyRunning, http.StatusConflict, nil, "maintenance run %s already in progress", runID)
}

func InvalidArgument(format string, args ...any) *Error {
	return New(CodeInvalidArgument, http.StatusBadRequest, nil, format, args...)
}

func HistoryDisabled() *Error {
	return New(CodeHistoryDisabled, http.StatusServiceUnavailable, nil, "run history is disabled")
}

// Wrap converts any error into *Error, keeping existing codes.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(CodeInternal, http.StatusInternalServerError, err, "%s", strings.TrimSpace(err.Error()))
}

// Is and As re-export the stdlib helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
