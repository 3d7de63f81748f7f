package client

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DecodeBody reads and closes resp.Body, decoding it according to the
// response's Content-Encoding header.
//
// The challenge platform serves its pages and interpreter scripts with br or
// gzip encoding, and the transport requests those encodings explicitly (see
// ChromeOrderedHeaders), which disables net/http's transparent gzip
// handling.  Decoding therefore has to happen here, after the fact, for
// every encoding the accept-encoding header advertises.
func DecodeBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))

	var reader io.Reader
	switch encoding {
	case "", "identity":
		reader = resp.Body

	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("client: open gzip body: %w", err)
		}
		defer gz.Close() //nolint:errcheck
		reader = gz

	case "deflate":
		fr := flate.NewReader(resp.Body)
		defer fr.Close() //nolint:errcheck
		reader = fr

	case "br":
		reader = brotli.NewReader(resp.Body)

	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("client: open zstd body: %w", err)
		}
		defer zr.Close()
		reader = zr

	default:
		return nil, fmt.Errorf("client: unsupported content encoding %q", encoding)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("client: read %s body: %w", orIdentity(encoding), err)
	}
	return body, nil
}

func orIdentity(encoding string) string {
	if encoding == "" {
		return "identity"
	}
	return encoding
}
