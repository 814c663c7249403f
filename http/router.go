package http

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/qubane/webserv/cache"
	"github.com/qubane/webserv/filesystem"
)

//go:embed errorpage.html
var defaultErrorPage string

// HandlerFunc is the route-handler collaborator for an API namespace. It may
// return nil to signal that the path does not exist within the namespace.
type HandlerFunc func(conn net.Conn, req *Request) *Response

type APIVersion struct {
	Supported bool
	Handler   HandlerFunc
}

// Router resolves parsed requests against the static content store and the
// registered API versions, and negotiates the response encoding.
type Router struct {
	store     *cache.Store
	versions  map[string]APIVersion
	errorTmpl *template.Template
	logger    *slog.Logger
}

func NewRouter(store *cache.Store, logger *slog.Logger) *Router {
	return &Router{
		store:     store,
		versions:  make(map[string]APIVersion),
		errorTmpl: template.Must(template.New("error").Parse(defaultErrorPage)),
		logger:    logger,
	}
}

// RegisterVersion adds an API namespace keyed by its leading path segment.
// A version registered as unsupported keeps its prefix but answers every
// request with a client error instead of invoking the handler.
func (r *Router) RegisterVersion(name string, supported bool, handler HandlerFunc) {
	r.versions[name] = APIVersion{Supported: supported, Handler: handler}
}

// LoadErrorPage replaces the embedded error template with an on-disk one.
func (r *Router) LoadErrorPage(fs filesystem.Filesystem, path string) error {
	data, err := fs.ReadFile(path)
	if err != nil {
		return err
	}

	tmpl, err := template.New("error").Parse(string(data))
	if err != nil {
		return fmt.Errorf("http: parse error page %s: %w", path, err)
	}

	r.errorTmpl = tmpl
	return nil
}

// Route produces the response for a request. Precedence: exact static match,
// then API version prefix, then the templated not-found page.
func (r *Router) Route(conn net.Conn, req *Request) *Response {
	res := r.dispatch(conn, req)
	r.finalize(req, res)
	return res
}

func (r *Router) dispatch(conn net.Conn, req *Request) *Response {
	if r.store.Has(req.Path) {
		if req.Method == MethodOther {
			return r.ErrorResponse(StatusNotImplemented, req.Path)
		}
		return r.serveStatic(req)
	}

	if version, found := apiVersionSegment(req.Path); found {
		if v, registered := r.versions[version]; registered {
			if req.Method == MethodOther {
				return r.ErrorResponse(StatusNotImplemented, req.Path)
			}
			if !v.Supported {
				return r.ErrorResponse(StatusBadRequest, req.Path)
			}
			if res := v.Handler(conn, req); res != nil {
				return res
			}
			return r.ErrorResponse(StatusNotFound, req.Path)
		}
	}

	return r.ErrorResponse(StatusNotFound, req.Path)
}

// apiVersionSegment extracts the leading path segment when at least one more
// segment follows it.
func apiVersionSegment(path string) (string, bool) {
	version, rest, found := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !found || version == "" || rest == "" {
		return "", false
	}
	return version, true
}

func (r *Router) serveStatic(req *Request) *Response {
	container, found := r.store.Get(req.Path)
	if !found {
		return r.ErrorResponse(StatusNotFound, req.Path)
	}

	entry := container.Entry()
	res := &Response{Status: StatusOK, Compressible: entry.Compressible}
	res.SetHeader("content-type", entry.ContentType)

	identity, _ := container.Variant(cache.EncodingIdentity)
	body := identity.Data

	if entry.Compressible {
		accepted := req.AcceptedEncodings()
		switch {
		case accepted[cache.EncodingBrotli]:
			if variant, cached := container.Variant(cache.EncodingBrotli); cached {
				body = variant.Data
			} else {
				// no precomputed variant, compress while writing
				res.Encoding = cache.EncodingBrotli
				res.Stream = true
			}
			res.SetHeader("content-encoding", cache.EncodingBrotli)
		case accepted[cache.EncodingGzip]:
			if variant, cached := container.Variant(cache.EncodingGzip); cached {
				body = variant.Data
				res.SetHeader("content-encoding", cache.EncodingGzip)
			}
		}
	}

	res.Body = body
	return res
}

// finalize applies on-the-fly negotiation for handler responses that have not
// fixed an encoding, settles content-length, and strips the body for HEAD
// after the headers are final so they mirror the GET variant exactly.
func (r *Router) finalize(req *Request, res *Response) {
	if _, fixed := res.HeaderValue("content-encoding"); !fixed && res.Compressible {
		accepted := req.AcceptedEncodings()
		switch {
		case accepted[cache.EncodingBrotli]:
			res.Encoding, res.Stream = cache.EncodingBrotli, true
			res.SetHeader("content-encoding", cache.EncodingBrotli)
		case accepted[cache.EncodingGzip]:
			res.Encoding, res.Stream = cache.EncodingGzip, true
			res.SetHeader("content-encoding", cache.EncodingGzip)
		}
	}

	if _, set := res.HeaderValue("content-length"); !set && !res.Stream && res.BodyStream == nil {
		res.SetHeader("content-length", strconv.Itoa(len(res.Body)))
	}
	if _, set := res.HeaderValue("connection"); !set {
		res.SetHeader("connection", "close")
	}

	if req.Method == MethodHead {
		res.Body = nil
		res.BodyStream = nil
		res.Stream = false
	}
}

type errorPageData struct {
	Code   uint16
	Reason string
	Path   string
}

// ErrorResponse renders the templated error page for a status code. The body
// always embeds the numeric status; internal details never leak into it.
func (r *Router) ErrorResponse(status uint16, path string) *Response {
	var body bytes.Buffer
	err := r.errorTmpl.Execute(&body, errorPageData{
		Code:   status,
		Reason: StatusMessage(status),
		Path:   path,
	})
	if err != nil {
		r.logger.Error("error page render failed", "status", status, "error", err)
		body.Reset()
		fmt.Fprintf(&body, "%d %s", status, StatusMessage(status))
	}

	res := &Response{Status: status, Body: body.Bytes()}
	res.SetHeader("content-type", "text/html")
	return res
}
