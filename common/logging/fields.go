package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService      = "service"
	FieldProjectID    = "project_id"
	FieldOrgID        = "organization_id"
	FieldEventID      = "event_id"
	FieldItemType     = "item_type"
	FieldTaskID       = "task_id"
	FieldIP           = "ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatus       = "status"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldEndpoint     = "endpoint"
	FieldQueueSubject = "queue_subject"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// ProjectID returns a slog attribute for the project ID.
func ProjectID(id int64) slog.Attr {
	return slog.Int64(FieldProjectID, id)
}

// OrgID returns a slog attribute for the organization ID.
func OrgID(id int64) slog.Attr {
	return slog.Int64(FieldOrgID, id)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// ItemType returns a slog attribute for an envelope item type.
func ItemType(t string) slog.Attr {
	return slog.String(FieldItemType, t)
}

// TaskID returns a slog attribute for a queue task handle.
func TaskID(id string) slog.Attr {
	return slog.String(FieldTaskID, id)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Endpoint returns a slog attribute for the ingest endpoint name.
func Endpoint(name string) slog.Attr {
	return slog.String(FieldEndpoint, name)
}

// QueueSubject returns a slog attribute for the queue subject.
func QueueSubject(subject string) slog.Attr {
	return slog.String(FieldQueueSubject, subject)
}
