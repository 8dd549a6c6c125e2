package usecase

import (
	"errors"
	"fmt"
)

type ErrKind string

const (
	KindValidation          ErrKind = "validation_error"
	KindNotFound            ErrKind = "not_found"
	KindConflict            ErrKind = "conflict"
	KindConcurrencyConflict ErrKind = "concurrency_conflict"
	KindStorageUnavailable  ErrKind = "storage_unavailable"
)

// Error is the error every manager operation fails with. Message is the
// human readable reason handed back to API clients.
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, which makes the
// Err* sentinels below usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
	ErrStorageUnavailable  = &Error{Kind: KindStorageUnavailable}
)

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func ValidationError(code, message string) error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFoundError(code, message string) error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func ConflictError(code, message string) error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func ConcurrencyConflictError(code, message string, err error) error {
	return &Error{Kind: KindConcurrencyConflict, Code: code, Message: message, Err: err}
}

// StorageUnavailableError wraps an infrastructure failure of the store.
func StorageUnavailableError(err error) error {
	return &Error{
		Kind:    KindStorageUnavailable,
		Code:    "storage_unavailable",
		Message: "storage unavailable",
		Err:     err,
	}
}

func ErrAssetNotFound(id uint) error {
	return NotFoundError("asset_not_found", fmt.Sprintf("Asset with id %d not found", id))
}

func ErrGroupNotFound(id uint) error {
	return NotFoundError("group_not_found", fmt.Sprintf("Group with id %d not found", id))
}

func ErrAssetAlreadyMember(assetID, groupID uint) error {
	return ConflictError("asset_already_member",
		fmt.Sprintf("Asset with id %d already exists in group %d", assetID, groupID))
}

func ErrAssetNotMember(assetID, groupID uint) error {
	return NotFoundError("asset_not_member",
		fmt.Sprintf("Asset with id %d not found in group %d", assetID, groupID))
}

func ErrAssetVersionMismatch(id uint, expected int) error {
	return ConcurrencyConflictError("asset_version_mismatch",
		fmt.Sprintf("Asset with id %d was modified concurrently, version %d is stale", id, expected), nil)
}

func ErrGroupVersionMismatch(id uint, expected int) error {
	return ConcurrencyConflictError("group_version_mismatch",
		fmt.Sprintf("Group with id %d was modified concurrently, version %d is stale", id, expected), nil)
}
