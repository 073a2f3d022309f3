package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SecurityReport is the browser-native report wrapper posted to the
// security endpoint. Only CSP violation reports are supported today.
type SecurityReport struct {
	CSPReport *CSPReport `json:"csp-report"`
}

// CSPReport is a Content-Security-Policy violation in canonical form.
// Browsers send hyphenated field names ("blocked-uri"); the canonical schema
// uses underscores. Decoding accepts both spellings, encoding always emits
// the canonical names, so the re-keying is lossy on naming but lossless on
// values.
type CSPReport struct {
	BlockedURI         string `json:"blocked_uri,omitempty"`
	Disposition        string `json:"disposition,omitempty"`
	DocumentURI        string `json:"document_uri,omitempty" validate:"required"`
	EffectiveDirective string `json:"effective_directive,omitempty" validate:"required"`
	OriginalPolicy     string `json:"original_policy,omitempty"`
	Referrer           string `json:"referrer,omitempty"`
	ScriptSample       string `json:"script_sample,omitempty"`
	SourceFile         string `json:"source_file,omitempty"`
	ViolatedDirective  string `json:"violated_directive,omitempty"`
	StatusCode         int    `json:"status_code,omitempty"`
	LineNumber         int    `json:"line_number,omitempty"`
	ColumnNumber       int    `json:"column_number,omitempty"`
}

// cspReportAlias avoids recursing into UnmarshalJSON.
type cspReportAlias CSPReport

// UnmarshalJSON canonicalizes field names before decoding so that both the
// hyphenated browser spelling and the canonical underscore spelling are
// accepted. Numeric fields may arrive as JSON strings from older browsers.
func (c *CSPReport) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	canonical := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		canonical[strings.ReplaceAll(k, "-", "_")] = v
	}

	for _, numField := range []string{"status_code", "line_number", "column_number"} {
		if v, ok := canonical[numField]; ok {
			canonical[numField] = coerceJSONNumber(v)
		}
	}

	merged, err := json.Marshal(canonical)
	if err != nil {
		return err
	}

	var alias cspReportAlias
	if err := json.Unmarshal(merged, &alias); err != nil {
		return fmt.Errorf("malformed csp report: %w", err)
	}
	*c = CSPReport(alias)

	// Old browsers only send violated-directive; derive the effective
	// directive from its first token. A whitespace-only directive has no
	// tokens and derives nothing.
	if fields := strings.Fields(c.ViolatedDirective); c.EffectiveDirective == "" && len(fields) > 0 {
		c.EffectiveDirective = fields[0]
	}

	return nil
}

// coerceJSONNumber turns a JSON string holding digits into a bare number,
// leaving everything else untouched. A string that is not a number stays a
// string, so the decode fails instead of inventing a value.
func coerceJSONNumber(v json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return v
	}
	if _, err := strconv.Atoi(s); err != nil {
		return v
	}
	return json.RawMessage(s)
}
