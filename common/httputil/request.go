package httputil

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrBodyTooLarge is returned when a request body exceeds the configured
// maximum size, before or after decompression.
var ErrBodyTooLarge = errors.New("request body too large")

// ReadBody reads a request body honoring the Content-Encoding header.
// SDK clients routinely gzip- or deflate-compress event submissions; the
// decompressed size is capped at maxSize to guard against decompression
// bombs.
func ReadBody(r *http.Request, maxSize int64) ([]byte, error) {
	var reader io.Reader = r.Body

	switch strings.ToLower(r.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(r.Body)
		defer fl.Close()
		reader = fl
	case "", "identity":
		// Plain body
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", r.Header.Get("Content-Encoding"))
	}

	// Read one byte past the limit to distinguish "exactly maxSize" from
	// "too large".
	body, err := io.ReadAll(io.LimitReader(reader, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(body)) > maxSize {
		return nil, ErrBodyTooLarge
	}

	return body, nil
}
