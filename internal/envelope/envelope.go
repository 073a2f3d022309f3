// Package envelope parses the newline-delimited envelope wire format used
// by SDK clients to bundle heterogeneous items in one request.
//
// An envelope is a header JSON line followed by zero or more items, each an
// item-header JSON line plus a payload. When the item header carries a
// length the payload is that many bytes followed by a newline; otherwise it
// runs to the end of the line.
package envelope

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Item types that the ingest pipeline understands. Anything else is
// intentionally filtered, not an error.
const (
	ItemTypeEvent       = "event"
	ItemTypeTransaction = "transaction"
)

var (
	// ErrEmptyBody indicates a request with no envelope header line.
	ErrEmptyBody = errors.New("empty envelope body")

	// ErrItemTooLarge indicates an item payload above the configured cap.
	ErrItemTooLarge = errors.New("envelope item too large")
)

// HeaderError wraps envelope-header validation failures; the endpoint maps
// it to a client error.
type HeaderError struct {
	Err error
}

func (e *HeaderError) Error() string { return fmt.Sprintf("invalid envelope header: %v", e.Err) }
func (e *HeaderError) Unwrap() error { return e.Err }

// Header is the envelope-level header line.
type Header struct {
	EventID string    `json:"event_id,omitempty"`
	DSN     string    `json:"dsn,omitempty"`
	SentAt  time.Time `json:"sent_at,omitzero"`
}

// ItemHeader describes one envelope item.
type ItemHeader struct {
	Type        string `json:"type"`
	Length      *int64 `json:"length,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// Item is one parsed envelope item with its raw payload bytes.
type Item struct {
	Header  ItemHeader
	Payload []byte
}

// Envelope is a fully parsed submission. Items preserve arrival order.
// Truncated is set when a malformed item header or short read forced the
// parser to stop early; items parsed before the fault are still usable.
type Envelope struct {
	Header    Header
	Items     []Item
	Truncated bool
}

// Parse reads an envelope from r. Individual item payloads are capped at
// maxItemSize bytes. A malformed envelope header is a *HeaderError; a
// malformed item header stops parsing but is not an error, matching SDK
// expectations that a partially readable envelope still lands its good
// items.
func Parse(r io.Reader, maxItemSize int64) (*Envelope, error) {
	br := bufio.NewReader(r)

	headerLine, err := readLine(br)
	if err != nil || len(bytes.TrimSpace(headerLine)) == 0 {
		return nil, ErrEmptyBody
	}

	var env Envelope
	if err := json.Unmarshal(headerLine, &env.Header); err != nil {
		return nil, &HeaderError{Err: err}
	}

	for {
		itemHeaderLine, err := readLine(br)
		if err != nil {
			break // end of stream
		}
		if len(bytes.TrimSpace(itemHeaderLine)) == 0 {
			continue
		}

		var itemHeader ItemHeader
		if err := json.Unmarshal(itemHeaderLine, &itemHeader); err != nil || itemHeader.Type == "" {
			// Cannot recover framing after a bad item header.
			env.Truncated = true
			break
		}

		payload, err := readPayload(br, itemHeader, maxItemSize)
		if err != nil {
			if errors.Is(err, ErrItemTooLarge) {
				return nil, err
			}
			env.Truncated = true
			break
		}

		env.Items = append(env.Items, Item{Header: itemHeader, Payload: payload})
	}

	return &env, nil
}

func readPayload(br *bufio.Reader, header ItemHeader, maxItemSize int64) ([]byte, error) {
	if header.Length != nil && *header.Length >= 0 {
		length := *header.Length
		if length > maxItemSize {
			return nil, ErrItemTooLarge
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(br, payload); err != nil {
			return nil, fmt.Errorf("short item payload: %w", err)
		}
		// Consume the trailing newline after a length-framed payload.
		_, _ = readLine(br)
		return payload, nil
	}

	payload, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > maxItemSize {
		return nil, ErrItemTooLarge
	}
	return payload, nil
}

// readLine returns a line without its trailing newline. A final unterminated
// line is returned as-is; io.EOF with no data is an error.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return line, nil
		}
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}
