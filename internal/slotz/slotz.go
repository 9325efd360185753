// Package slotz defines the closed error taxonomy shared by every
// slotforge component. Each Kind corresponds to one error case callers
// are expected to branch on with errors.Is/As; everything else stays a
// plain wrapped error.
package slotz

import "fmt"

// Kind identifies which taxonomy case an Error belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindSlotAlreadyExists
	KindSlotNotFound
	KindConfigNotFound
	KindInvalidConfig
	KindGit
	KindAgent
	KindPortAllocation
	KindBlueprintNotFound
	KindBlueprintAlreadyExists
	KindBlueprintValidation
	KindState
	KindProcess
)

func (k Kind) String() string {
	switch k {
	case KindSlotAlreadyExists:
		return "slot_already_exists"
	case KindSlotNotFound:
		return "slot_not_found"
	case KindConfigNotFound:
		return "config_not_found"
	case KindInvalidConfig:
		return "invalid_config"
	case KindGit:
		return "git"
	case KindAgent:
		return "agent"
	case KindPortAllocation:
		return "port_allocation"
	case KindBlueprintNotFound:
		return "blueprint_not_found"
	case KindBlueprintAlreadyExists:
		return "blueprint_already_exists"
	case KindBlueprintValidation:
		return "blueprint_validation"
	case KindState:
		return "state"
	case KindProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged error. Subject is the name the error is
// about (a slot name, a blueprint name, a path) where one applies.
type Error struct {
	Kind    Kind
	Subject string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		if e.Msg != "" {
			return fmt.Sprintf("%s %q: %s", e.Kind, e.Subject, e.Msg)
		}
		return fmt.Sprintf("%s %q", e.Kind, e.Subject)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, slotz.New(slotz.KindSlotNotFound, "", "")) matches any
// slot-not-found error regardless of subject/message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, subject, msg string) *Error {
	return &Error{Kind: kind, Subject: subject, Msg: msg}
}

func Wrap(kind Kind, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: err}
}

func Wrapf(kind Kind, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// SlotNotFound, SlotAlreadyExists, etc. are constructors for the
// taxonomy's most common cases, mirroring the original implementation's
// enum variant constructors.
func SlotNotFound(name string) *Error      { return New(KindSlotNotFound, name, "") }
func SlotAlreadyExists(name string) *Error { return New(KindSlotAlreadyExists, name, "") }

func BlueprintNotFound(name string) *Error      { return New(KindBlueprintNotFound, name, "") }
func BlueprintAlreadyExists(name string) *Error { return New(KindBlueprintAlreadyExists, name, "") }

// KindOf extracts the taxonomy Kind of err, walking the unwrap chain.
// Returns KindUnknown if err is nil or carries no *Error in its chain.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}
