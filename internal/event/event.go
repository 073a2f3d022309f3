// Package event defines the canonical issue-event schema shared by the
// ingest endpoints and the interchange envelope handed to the work queue.
package event

import (
	"time"
)

// Kind is the closed set of canonical event variants. Classification is
// explicit: inbound payloads are inspected once and tagged, and every later
// stage dispatches on the tag rather than on payload shape.
type Kind string

const (
	KindGeneric     Kind = "generic"
	KindError       Kind = "error"
	KindCSP         Kind = "csp"
	KindTransaction Kind = "transaction"
)

// User is the optional user sub-record of an issue event. The resolved
// client address is injected into IPAddress during normalization; raw
// addresses never survive past the ingest boundary when scrubbing is on.
type User struct {
	ID        string         `json:"id,omitempty"`
	Username  string         `json:"username,omitempty"`
	Email     string         `json:"email,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Frame is a single stack frame of an exception stacktrace.
type Frame struct {
	Filename    string `json:"filename,omitempty"`
	Function    string `json:"function,omitempty"`
	Module      string `json:"module,omitempty"`
	LineNo      int    `json:"lineno,omitempty"`
	ColNo       int    `json:"colno,omitempty"`
	AbsPath     string `json:"abs_path,omitempty"`
	ContextLine string `json:"context_line,omitempty"`
	InApp       *bool  `json:"in_app,omitempty"`
}

// Stacktrace holds the ordered frames of one exception value.
type Stacktrace struct {
	Frames []Frame `json:"frames,omitempty"`
}

// ExceptionValue is one entry of an exception chain.
type ExceptionValue struct {
	Type       string      `json:"type,omitempty"`
	Value      string      `json:"value,omitempty"`
	Module     string      `json:"module,omitempty"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty"`
}

// Exception is the structured exception data carried by Error events.
type Exception struct {
	Values []ExceptionValue `json:"values,omitempty"`
}

// Present reports whether the exception carries any values. SDKs sometimes
// send an empty exception wrapper on plain messages; that does not make the
// event an Error event.
func (e *Exception) Present() bool {
	return e != nil && len(e.Values) > 0
}

// IssueEvent is the canonical event shape. Exactly one of Exception or CSP
// is populated for the Error and CSP variants; both are absent for Generic.
// The type doubles as the lenient decode target for inbound store and
// envelope payloads: unknown SDK fields land in no field and are dropped,
// known fields are coerced into canonical naming on re-serialization.
type IssueEvent struct {
	EventID     string            `json:"event_id,omitempty"`
	Timestamp   time.Time         `json:"timestamp,omitzero"`
	Platform    string            `json:"platform,omitempty"`
	Level       string            `json:"level,omitempty"`
	Message     string            `json:"message,omitempty"`
	Logger      string            `json:"logger,omitempty"`
	Release     string            `json:"release,omitempty"`
	Environment string            `json:"environment,omitempty"`
	ServerName  string            `json:"server_name,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
	User        *User             `json:"user,omitempty"`
	Exception   *Exception        `json:"exception,omitempty"`
	CSP         *CSPReport        `json:"csp,omitempty"`
}

// WithClientIP returns a copy of the event with the resolved client address
// set on the user sub-record, creating the record when absent. The receiver
// is not mutated; normalization is an immutable pipeline. An empty address
// (non-routable source) leaves the event unchanged.
func (e IssueEvent) WithClientIP(addr string) IssueEvent {
	if addr == "" {
		return e
	}
	if e.User == nil {
		e.User = &User{IPAddress: addr}
		return e
	}
	user := *e.User
	user.IPAddress = addr
	e.User = &user
	return e
}

// TransactionEvent is the minimal canonical shape for performance
// transactions accepted from envelope submissions. Transactions are carried
// through the interchange envelope unchanged and processed by a dedicated
// downstream consumer.
type TransactionEvent struct {
	EventID        string            `json:"event_id,omitempty"`
	Timestamp      time.Time         `json:"timestamp,omitzero"`
	StartTimestamp time.Time         `json:"start_timestamp,omitzero"`
	Platform       string            `json:"platform,omitempty"`
	Transaction    string            `json:"transaction,omitempty"`
	Release        string            `json:"release,omitempty"`
	Environment    string            `json:"environment,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	User           *User             `json:"user,omitempty"`
}

// WithClientIP mirrors IssueEvent.WithClientIP for transactions.
func (e TransactionEvent) WithClientIP(addr string) TransactionEvent {
	if addr == "" {
		return e
	}
	if e.User == nil {
		e.User = &User{IPAddress: addr}
		return e
	}
	user := *e.User
	user.IPAddress = addr
	e.User = &user
	return e
}
