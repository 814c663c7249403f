package http

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/qubane/webserv/cache"
)

var ErrWriteAborted = errors.New("http: response write aborted")

type Header struct {
	Key   string
	Value string
}

// Response is constructed by the router and consumed exactly once by WriteTo.
// Body holds a fixed buffer; BodyStream a lazy sequence of chunks (used when
// Body is nil). When Stream is set, the body is pushed through a streaming
// compressor for the negotiated Encoding while writing.
type Response struct {
	Status     uint16
	Headers    []Header
	Body       []byte
	BodyStream io.Reader

	Compressible bool
	Encoding     string
	Stream       bool
}

// SetHeader replaces an existing header or appends a new one. Keys are kept
// lowercase on the wire.
func (res *Response) SetHeader(key, value string) {
	key = strings.ToLower(key)
	for i := range res.Headers {
		if res.Headers[i].Key == key {
			res.Headers[i].Value = value
			return
		}
	}
	res.Headers = append(res.Headers, Header{Key: key, Value: value})
}

func (res *Response) HeaderValue(key string) (string, bool) {
	key = strings.ToLower(key)
	for i := range res.Headers {
		if res.Headers[i].Key == key {
			return res.Headers[i].Value, true
		}
	}
	return "", false
}

func (res *Response) WithStatus(status uint16) *Response {
	res.Status = status
	return res
}

func (res *Response) WithText(data string) *Response {
	res.SetHeader("content-type", "text/plain")
	res.Body = []byte(data)
	return res
}

func (res *Response) WithJson(payload any) *Response {
	data, err := json.Marshal(payload)
	if err != nil {
		res.Status = StatusInternalServerError
		res.Body = nil
		return res
	}

	res.SetHeader("content-type", "application/json")
	res.Body = data
	return res
}

// WriteTo serializes the status line, headers and body onto the connection.
// Body emission is chunked into bounded writes; a would-block write waits out
// the retry interval and tries again, a hard transport error aborts this
// response only. A streaming compressor is flushed after every chunk and
// finalized before returning, so the compressed stream is complete when the
// connection closes.
func (res *Response) WriteTo(conn net.Conn, opts IOOptions) error {
	opts = opts.withDefaults()
	writer := &deadlineWriter{conn: conn, opts: opts}

	var head bytes.Buffer
	fmt.Fprintf(&head, "HTTP/1.1 %d %s\r\n", res.Status, StatusMessage(res.Status))
	for _, header := range res.Headers {
		fmt.Fprintf(&head, "%s: %s\r\n", header.Key, header.Value)
	}
	head.WriteString("\r\n")

	if _, err := writer.Write(head.Bytes()); err != nil {
		return err
	}

	var source io.Reader
	switch {
	case res.Body != nil:
		source = bytes.NewReader(res.Body)
	case res.BodyStream != nil:
		source = res.BodyStream
	default:
		return nil
	}

	var destination io.Writer = writer
	var flush, finish func() error
	if res.Stream {
		switch res.Encoding {
		case cache.EncodingBrotli:
			compressor := brotli.NewWriterLevel(writer, brotli.DefaultCompression)
			destination, flush, finish = compressor, compressor.Flush, compressor.Close
		case cache.EncodingGzip:
			compressor := gzip.NewWriter(writer)
			destination, flush, finish = compressor, compressor.Flush, compressor.Close
		}
	}

	chunk := make([]byte, opts.ChunkSize)
	for {
		n, readErr := source.Read(chunk)
		if n > 0 {
			if _, err := destination.Write(chunk[:n]); err != nil {
				return err
			}
			// a flushed chunk may legitimately produce no output yet
			if flush != nil {
				if err := flush(); err != nil {
					return fmt.Errorf("http: compressor flush: %w", err)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("http: response body: %w", readErr)
		}
	}

	if finish != nil {
		if err := finish(); err != nil {
			return fmt.Errorf("http: compressor close: %w", err)
		}
	}

	return nil
}

// deadlineWriter bounds every write and converts write timeouts into retries,
// polling the cancellation token between attempts.
type deadlineWriter struct {
	conn net.Conn
	opts IOOptions
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		if w.opts.Cancelled != nil && w.opts.Cancelled() {
			return written, ErrWriteAborted
		}

		end := written + w.opts.ChunkSize
		if end > len(p) {
			end = len(p)
		}

		if err := w.conn.SetWriteDeadline(time.Now().Add(w.opts.RetryInterval)); err != nil {
			return written, fmt.Errorf("http: set write deadline: %w", err)
		}

		n, err := w.conn.Write(p[written:end])
		written += n
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return written, fmt.Errorf("http: write response: %w", err)
		}
	}
	return written, nil
}
