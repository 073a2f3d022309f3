// Package normalizer turns raw inbound payloads into canonical events.
// Decoding is lenient, classification is explicit and happens exactly once
// here; every later stage dispatches on the resulting kind tag.
package normalizer

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/crashgate-systems/crashgate/internal/event"
)

// SchemaError marks a payload the client got wrong. Endpoints map it to a
// 400 response; everything else is a server-side failure.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErr(reason string, err error) *SchemaError {
	return &SchemaError{Reason: reason, Err: err}
}

var validate = validator.New()

// Classify tags an issue event. An exception chain with at least one value
// makes it an error event; a CSP report makes it a CSP event; anything else
// is generic.
func Classify(ev *event.IssueEvent) event.Kind {
	switch {
	case ev.Exception.Present():
		return event.KindError
	case ev.CSP != nil:
		return event.KindCSP
	default:
		return event.KindGeneric
	}
}

// NormalizeStore decodes a store submission into the canonical issue event
// and classifies it.
func NormalizeStore(body []byte) (*event.IssueEvent, event.Kind, error) {
	var ev event.IssueEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, "", schemaErr("malformed event payload", err)
	}
	return &ev, Classify(&ev), nil
}

// NormalizeEnvelopeEvent decodes one envelope event item.
func NormalizeEnvelopeEvent(payload []byte) (*event.IssueEvent, event.Kind, error) {
	return NormalizeStore(payload)
}

// NormalizeTransaction decodes one envelope transaction item.
func NormalizeTransaction(payload []byte) (*event.TransactionEvent, error) {
	var tx event.TransactionEvent
	if err := json.Unmarshal(payload, &tx); err != nil {
		return nil, schemaErr("malformed transaction payload", err)
	}
	return &tx, nil
}

// NormalizeSecurity decodes a browser security report and lifts it into a
// CSP issue event. The synthesized message mirrors what browsers show in
// their consoles so grouped issues read naturally.
func NormalizeSecurity(body []byte) (*event.IssueEvent, error) {
	var report event.SecurityReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, schemaErr("malformed security report", err)
	}
	if report.CSPReport == nil {
		return nil, schemaErr("unsupported security report type", nil)
	}
	if err := validate.Struct(report.CSPReport); err != nil {
		return nil, schemaErr("incomplete csp report", err)
	}

	ev := &event.IssueEvent{
		Level:   "info",
		Message: cspMessage(report.CSPReport),
		Logger:  "csp",
		CSP:     report.CSPReport,
	}
	return ev, nil
}

func cspMessage(r *event.CSPReport) string {
	directive := r.EffectiveDirective
	uri := r.BlockedURI
	if uri == "" || uri == "self" {
		return fmt.Sprintf("Blocked unsafe %s", directive)
	}
	return fmt.Sprintf("Blocked '%s' from '%s'", directive, uri)
}
