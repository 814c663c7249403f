// Package http implements the connection-handling and content-delivery
// pipeline: a thread-per-connection HTTP/1.1 server that serves precompressed
// static resources and a versioned API namespace, one request per connection.
package http

import "time"

const (
	DefaultReadIncrement  = 64 * 1024 // 64 KiB per read from a connection
	DefaultMaxRequestSize = 1 << 20   // cap on the buffered header block
	DefaultChunkSize      = 64 * 1024 // bound on a single body write
	DefaultRetryInterval  = 5 * time.Millisecond
	DefaultStallReads     = 2
)

// Method is the closed set of request methods the server distinguishes.
// Anything that is not GET or HEAD routes as MethodOther and is rejected
// with 501 before reaching a handler.
type Method uint8

const (
	MethodGet Method = iota
	MethodHead
	MethodOther
)

func ParseMethod(raw string) Method {
	switch raw {
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	default:
		return MethodOther
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	default:
		return "OTHER"
	}
}

// IOOptions bound the would-block retry loops on both sides of a connection.
// Cancelled is polled at every retry point; once it reports true the loop
// exits at its next poll.
type IOOptions struct {
	ReadIncrement  int
	MaxRequestSize int
	ChunkSize      int
	RetryInterval  time.Duration
	StallReads     int
	Cancelled      func() bool
}

func (o IOOptions) withDefaults() IOOptions {
	if o.ReadIncrement <= 0 {
		o.ReadIncrement = DefaultReadIncrement
	}
	if o.MaxRequestSize <= 0 {
		o.MaxRequestSize = DefaultMaxRequestSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.StallReads <= 0 {
		o.StallReads = DefaultStallReads
	}
	return o
}
