package gateway

import (
	"errors"
	"fmt"
)

// GenerationError means the artifact generator failed or produced an invalid artifact.
type GenerationError struct {
	Provider string
	Msg      string
	Err      error
}

func (e *GenerationError) Error() string { return format("generation", e.Provider, e.Msg, e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// StorageError means an upload failed. Object is "artifact" or "metadata".
type StorageError struct {
	Provider string
	Object   string
	Msg      string
	Err      error
}

func (e *StorageError) Error() string {
	scope := "storage"
	if e.Object != "" {
		scope = "storage " + e.Object
	}
	return format(scope, e.Provider, e.Msg, e.Err)
}
func (e *StorageError) Unwrap() error { return e.Err }

// MintError means the ledger write failed.
type MintError struct {
	Provider string
	Msg      string
	Err      error
}

func (e *MintError) Error() string { return format("mint", e.Provider, e.Msg, e.Err) }
func (e *MintError) Unwrap() error { return e.Err }

func NewGenerationError(provider, msg string, err error) *GenerationError {
	return &GenerationError{Provider: provider, Msg: msg, Err: err}
}

func NewStorageError(provider, object, msg string, err error) *StorageError {
	return &StorageError{Provider: provider, Object: object, Msg: msg, Err: err}
}

func NewMintError(provider, msg string, err error) *MintError {
	return &MintError{Provider: provider, Msg: msg, Err: err}
}

func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func IsMintError(err error) bool {
	var me *MintError
	return errors.As(err, &me)
}

// ProviderOf returns the provider recorded on a gateway error, or "".
func ProviderOf(err error) string {
	var (
		ge *GenerationError
		se *StorageError
		me *MintError
	)
	switch {
	case errors.As(err, &ge):
		return ge.Provider
	case errors.As(err, &se):
		return se.Provider
	case errors.As(err, &me):
		return me.Provider
	}
	return ""
}

func format(scope, provider, msg string, err error) string {
	head := scope + " error"
	if provider != "" {
		head = fmt.Sprintf("%s error (%s)", scope, provider)
	}
	switch {
	case msg != "" && err != nil:
		return fmt.Sprintf("%s: %s: %v", head, msg, err)
	case msg != "":
		return head + ": " + msg
	case err != nil:
		return fmt.Sprintf("%s: %v", head, err)
	}
	return head
}
