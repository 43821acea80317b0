// Package tools exposes the fixed set of named operations agents invoke
// against a project: project context, knowledge reads, workspace/notes/
// schedule mutation, and search.
package tools

import "fmt"

// Kind is the normative error taxonomy shared by the tool surface and the
// HTTP layer; each maps to exactly one HTTP status and CLI exit code.
type Kind string

const (
	KindInvalidArgument   Kind = "InvalidArgument"
	KindNotFound          Kind = "NotFound"
	KindConflict          Kind = "Conflict"
	KindCorrupt           Kind = "Corrupt"
	KindForbidden         Kind = "Forbidden"
	KindUnsupportedAction Kind = "UnsupportedAction"
	KindInternal          Kind = "Internal"
)

// InvalidArgument reports a schema or enum violation in tool input.
type InvalidArgument struct {
	Field  string
	Reason string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func (e *InvalidArgument) Kind() Kind { return KindInvalidArgument }

// NotFound reports a missing project/page/region/workspace/note/item.
type NotFound struct {
	Kind_ string
	Token string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind_, e.Token)
}

func (e *NotFound) Kind() Kind { return KindNotFound }

// Conflict reports a lock that could not be acquired within the bounded
// retry deadline.
type Conflict struct {
	Detail string
}

func (e *Conflict) Error() string { return "conflict: " + e.Detail }

func (e *Conflict) Kind() Kind { return KindConflict }

// Corrupt reports an on-disk document that could not be normalized.
type Corrupt struct {
	Path string
}

func (e *Corrupt) Error() string { return "corrupt document: " + e.Path }

func (e *Corrupt) Kind() Kind { return KindCorrupt }

// Classified is implemented by every tool-surface error so the HTTP layer
// and the CLI can both map it to the same status/exit code.
type Classified interface {
	error
	Kind() Kind
}

// ClassifyErr maps an arbitrary error to its Kind, defaulting to Internal
// for errors the tool surface did not originate itself.
func ClassifyErr(err error) Kind {
	if err == nil {
		return ""
	}
	if c, ok := err.(Classified); ok {
		return c.Kind()
	}
	return KindInternal
}
