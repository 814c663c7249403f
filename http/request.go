package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

var (
	ErrConnectionClosed = errors.New("http: connection closed before a complete request")
	ErrRequestTooLarge  = errors.New("http: request exceeds the buffered size limit")
	ErrStalledPeer      = errors.New("http: peer stopped sending before the header terminator")

	// ErrMalformedRequest means the request line itself was unusable; the
	// connection is dropped without a response. ErrMalformedHeader means the
	// line parsed but a header did not, which still earns a 400.
	ErrMalformedRequest = errors.New("http: malformed request")
	ErrMalformedHeader  = errors.New("http: malformed header")
)

var headerTerminator = []byte("\r\n\r\n")

// Request is one parsed request. Header keys are normalized to lowercase;
// for repeated headers the last value wins. The path carries any query
// string opaquely.
type Request struct {
	Method    Method
	RawMethod string
	Path      string
	Proto     string
	Headers   map[string]string
}

func (req *Request) Header(key string) (string, bool) {
	value, found := req.Headers[strings.ToLower(key)]
	return value, found
}

// AcceptedEncodings parses the accept-encoding header into a token set.
// Quality values are stripped; unknown tokens are carried but ignored by the
// negotiator.
func (req *Request) AcceptedEncodings() map[string]bool {
	accepted := make(map[string]bool)

	raw, found := req.Header("Accept-Encoding")
	if !found {
		return accepted
	}

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if i := strings.IndexByte(token, ';'); i >= 0 {
			token = strings.TrimSpace(token[:i])
		}
		if token != "" {
			accepted[strings.ToLower(token)] = true
		}
	}

	return accepted
}

// ReadRequest accumulates bytes from the connection in bounded increments
// until the header terminator arrives, then parses the block. The connection
// is read with short deadlines so the cancellation token and the stall
// counter are polled between increments; a peer that makes no progress on
// StallReads consecutive reads is dropped.
func ReadRequest(conn net.Conn, opts IOOptions) (*Request, error) {
	opts = opts.withDefaults()

	buffer := make([]byte, 0, opts.ReadIncrement)
	chunk := make([]byte, opts.ReadIncrement)
	stalled := 0

	for {
		if opts.Cancelled != nil && opts.Cancelled() {
			return nil, ErrConnectionClosed
		}

		if err := conn.SetReadDeadline(time.Now().Add(opts.RetryInterval)); err != nil {
			return nil, fmt.Errorf("http: set read deadline: %w", err)
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			stalled = 0
			buffer = append(buffer, chunk[:n]...)
			if len(buffer) > opts.MaxRequestSize {
				return nil, ErrRequestTooLarge
			}

			// the terminator may span the chunk boundary, so search a window
			// reaching back over the previous tail
			start := len(buffer) - n - len(headerTerminator) + 1
			if start < 0 {
				start = 0
			}
			if i := bytes.Index(buffer[start:], headerTerminator); i >= 0 {
				return parseRequest(buffer[:start+i])
			}
		} else {
			stalled++
			if stalled >= opts.StallReads {
				return nil, ErrStalledPeer
			}
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil, ErrConnectionClosed
			}
			return nil, fmt.Errorf("http: read request: %w", err)
		}
	}
}

func parseRequest(block []byte) (*Request, error) {
	lines := strings.Split(string(block), "\r\n")

	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, lines[0])
	}

	req := &Request{
		Method:    ParseMethod(parts[0]),
		RawMethod: parts[0],
		Path:      parts[1],
		Proto:     parts[2],
		Headers:   make(map[string]string, len(lines)-1),
	}
	if req.Path == "" || req.Path[0] != '/' {
		return nil, fmt.Errorf("%w: request target %q", ErrMalformedRequest, req.Path)
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("%w: line %q", ErrMalformedHeader, line)
		}
		req.Headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return req, nil
}
