package event

import (
	"encoding/json"
	"testing"
)

func TestCSPReport_DecodeHyphenatedNames(t *testing.T) {
	raw := `{
		"blocked-uri": "https://evil.example.com/inject.js",
		"document-uri": "https://app.example.com/checkout",
		"effective-directive": "script-src",
		"violated-directive": "script-src 'self'",
		"original-policy": "default-src 'self'; script-src 'self'",
		"disposition": "enforce",
		"status-code": 200,
		"line-number": 12,
		"column-number": 4,
		"source-file": "https://app.example.com/main.js",
		"script-sample": "eval(atob(...))"
	}`

	var report CSPReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if report.BlockedURI != "https://evil.example.com/inject.js" {
		t.Errorf("BlockedURI = %q", report.BlockedURI)
	}
	if report.DocumentURI != "https://app.example.com/checkout" {
		t.Errorf("DocumentURI = %q", report.DocumentURI)
	}
	if report.EffectiveDirective != "script-src" {
		t.Errorf("EffectiveDirective = %q", report.EffectiveDirective)
	}
	if report.StatusCode != 200 || report.LineNumber != 12 || report.ColumnNumber != 4 {
		t.Errorf("numeric fields = %d/%d/%d", report.StatusCode, report.LineNumber, report.ColumnNumber)
	}
}

func TestCSPReport_RoundTripCanonicalNames(t *testing.T) {
	raw := `{
		"blocked-uri": "data",
		"document-uri": "https://app.example.com/",
		"effective-directive": "img-src",
		"status-code": "0"
	}`

	var report CSPReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var keys map[string]any
	if err := json.Unmarshal(out, &keys); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}

	// Values survive, names are canonical.
	if keys["blocked_uri"] != "data" {
		t.Errorf("blocked_uri = %v", keys["blocked_uri"])
	}
	if keys["document_uri"] != "https://app.example.com/" {
		t.Errorf("document_uri = %v", keys["document_uri"])
	}
	if keys["effective_directive"] != "img-src" {
		t.Errorf("effective_directive = %v", keys["effective_directive"])
	}
	for _, aliased := range []string{"blocked-uri", "document-uri", "effective-directive"} {
		if _, ok := keys[aliased]; ok {
			t.Errorf("aliased key %q leaked into canonical output", aliased)
		}
	}
}

func TestCSPReport_AcceptsCanonicalInput(t *testing.T) {
	raw := `{"document_uri": "https://a.example/", "effective_directive": "style-src"}`

	var report CSPReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.DocumentURI != "https://a.example/" || report.EffectiveDirective != "style-src" {
		t.Errorf("canonical input not accepted: %+v", report)
	}
}

func TestCSPReport_DerivesEffectiveDirective(t *testing.T) {
	raw := `{"document-uri": "https://a.example/", "violated-directive": "script-src 'self' 'unsafe-inline'"}`

	var report CSPReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.EffectiveDirective != "script-src" {
		t.Errorf("EffectiveDirective = %q, want script-src", report.EffectiveDirective)
	}
}

func TestCSPReport_WhitespaceViolatedDirective(t *testing.T) {
	raw := `{"violated-directive": "   ", "document-uri": "https://a.example/"}`

	var report CSPReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.EffectiveDirective != "" {
		t.Errorf("EffectiveDirective = %q, want empty", report.EffectiveDirective)
	}
	if report.ViolatedDirective != "   " {
		t.Errorf("ViolatedDirective = %q", report.ViolatedDirective)
	}
}

func TestCSPReport_RejectsNonNumericStrings(t *testing.T) {
	for _, raw := range []string{
		`{"document-uri": "https://a.example/", "status-code": "banana"}`,
		`{"document-uri": "https://a.example/", "line-number": "12px"}`,
		`{"document-uri": "https://a.example/", "column-number": ""}`,
	} {
		var report CSPReport
		if err := json.Unmarshal([]byte(raw), &report); err == nil {
			t.Errorf("unmarshal(%s) = nil error, want decode failure", raw)
		}
	}
}

func TestCSPReport_StringNumbers(t *testing.T) {
	raw := `{"document-uri": "https://a.example/", "effective-directive": "img-src", "status-code": "301", "line-number": "15"}`

	var report CSPReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.StatusCode != 301 {
		t.Errorf("StatusCode = %d, want 301", report.StatusCode)
	}
	if report.LineNumber != 15 {
		t.Errorf("LineNumber = %d, want 15", report.LineNumber)
	}
}
