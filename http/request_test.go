package http

import (
	"errors"
	"net"
	"testing"
	"time"
)

func testOpts() IOOptions {
	return IOOptions{
		ReadIncrement: 4096,
		RetryInterval: 5 * time.Millisecond,
		StallReads:    4,
	}
}

func readFrom(t *testing.T, raw string, opts IOOptions) (*Request, error) {
	t.Helper()

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		client.Write([]byte(raw))
	}()

	return ReadRequest(server, opts)
}

func TestReadRequestComplete(t *testing.T) {
	raw := "GET /test?q=1 HTTP/1.1\r\nHost: localhost\r\nAccept-Encoding: gzip, br\r\n\r\n"

	req, err := readFrom(t, raw, testOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Method != MethodGet {
		t.Errorf("expected GET, got %s", req.Method)
	}
	if req.Path != "/test?q=1" {
		t.Errorf("query must pass through opaquely, got %q", req.Path)
	}
	if req.Proto != "HTTP/1.1" {
		t.Errorf("expected HTTP/1.1, got %q", req.Proto)
	}

	// keys are normalized to lowercase
	if v, found := req.Header("ACCEPT-ENCODING"); !found || v != "gzip, br" {
		t.Errorf("expected case-insensitive header lookup, got %q (%v)", v, found)
	}
}

func TestReadRequestFragmented(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	// the terminator itself spans two writes
	go func() {
		client.Write([]byte("GET /split HTTP/1.1\r\nhos"))
		time.Sleep(2 * time.Millisecond)
		client.Write([]byte("t: localhost\r\n"))
		time.Sleep(2 * time.Millisecond)
		client.Write([]byte("\r\n"))
	}()

	req, err := ReadRequest(server, testOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Path != "/split" {
		t.Errorf("expected /split, got %q", req.Path)
	}
	if v, _ := req.Header("Host"); v != "localhost" {
		t.Errorf("expected localhost, got %q", v)
	}
}

func TestReadRequestLastHeaderValueWins(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Test: first\r\nx-test: second\r\n\r\n"

	req, err := readFrom(t, raw, testOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := req.Header("x-test"); v != "second" {
		t.Errorf("expected last value to win, got %q", v)
	}
}

func TestReadRequestOtherMethod(t *testing.T) {
	req, err := readFrom(t, "BREW /coffee HTTP/1.1\r\n\r\n", testOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != MethodOther {
		t.Errorf("expected MethodOther, got %s", req.Method)
	}
	if req.RawMethod != "BREW" {
		t.Errorf("expected raw method BREW, got %q", req.RawMethod)
	}
}

func TestReadRequestMalformedLine(t *testing.T) {
	_, err := readFrom(t, "GARBAGE\r\n\r\n", testOpts())
	if !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("expected ErrMalformedRequest, got %v", err)
	}

	_, err = readFrom(t, "GET relative-target HTTP/1.1\r\n\r\n", testOpts())
	if !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("expected ErrMalformedRequest, got %v", err)
	}
}

func TestReadRequestMalformedHeader(t *testing.T) {
	_, err := readFrom(t, "GET / HTTP/1.1\r\nno colon here\r\n\r\n", testOpts())
	if !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestReadRequestTooLarge(t *testing.T) {
	opts := testOpts()
	opts.ReadIncrement = 16
	opts.MaxRequestSize = 64

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		for i := 0; i < 16; i++ {
			if _, err := client.Write([]byte("X-Filler: aaaaaaaaaaaaaaaa\r\n")); err != nil {
				return
			}
		}
	}()

	_, err := ReadRequest(server, opts)
	if !errors.Is(err, ErrRequestTooLarge) {
		t.Errorf("expected ErrRequestTooLarge, got %v", err)
	}
}

func TestReadRequestStalledPeer(t *testing.T) {
	opts := testOpts()
	opts.StallReads = 2

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		client.Write([]byte("GET /never-finished HTTP/1.1\r\n"))
		// then silence
	}()

	start := time.Now()
	_, err := ReadRequest(server, opts)
	if !errors.Is(err, ErrStalledPeer) {
		t.Fatalf("expected ErrStalledPeer, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stall detection took too long: %s", elapsed)
	}
}

func TestReadRequestPeerClosed(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		client.Write([]byte("GET /incomplete HTTP/1.1\r\n"))
		client.Close()
	}()

	_, err := ReadRequest(server, testOpts())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestReadRequestCancelled(t *testing.T) {
	opts := testOpts()
	opts.Cancelled = func() bool { return true }

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	_, err := ReadRequest(server, opts)
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestAcceptedEncodings(t *testing.T) {
	req := &Request{Headers: map[string]string{
		"accept-encoding": "GZip, br;q=0.9 , deflate ,identity;q=0",
	}}

	accepted := req.AcceptedEncodings()
	for _, token := range []string{"gzip", "br", "deflate", "identity"} {
		if !accepted[token] {
			t.Errorf("expected token %q to be accepted", token)
		}
	}

	req = &Request{Headers: map[string]string{}}
	if len(req.AcceptedEncodings()) != 0 {
		t.Error("expected no tokens without the header")
	}
}
