// Package httpx reads HTTP/1.1 requests from and writes HTTP/1.1 responses
// to a raw connection. The origin servers own their sockets so that the
// thread/fork dispatch being measured is theirs, not a framework's.
package httpx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"net/url"
	"strings"
)

const (
	// maxLineBytes bounds the request line; oversized lines are malformed.
	maxLineBytes = 8 << 10
	// maxHeaderBytes bounds the request line plus header block together.
	maxHeaderBytes = 64 << 10
)

// ErrMalformed marks input that cannot be parsed as an HTTP/1.x request.
// Handlers map it to 400.
var ErrMalformed = errors.New("malformed request")

// Request is the parsed form of one incoming request. It lives only for the
// duration of its connection.
type Request struct {
	Method string
	// Path is the decoded request path, before any filesystem resolution.
	Path  string
	Query url.Values
	Proto string
	// Header keys are canonicalized (Host, Content-Length, ...).
	Header textproto.MIMEHeader
}

// ProcessRequested reports whether the client opted into the content
// transform step via ?process=true.
func (r *Request) ProcessRequested() bool {
	return strings.EqualFold(r.Query.Get("process"), "true")
}

// ReadRequest parses the request line and header block from r. Both size
// bounds are enforced while reading, so an oversized request never buffers
// past them. It never reads past the empty line terminating the headers;
// request bodies are not supported (GET/HEAD only) and are left unread on
// the socket.
func ReadRequest(r io.Reader) (*Request, error) {
	lim := &io.LimitedReader{R: r, N: maxHeaderBytes}
	br := bufio.NewReaderSize(lim, maxLineBytes)

	raw, err := br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: request line too long", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: reading request line: %w", ErrMalformed, err)
	}
	line := strings.TrimRight(string(raw), "\r\n")

	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformed, line)
	}
	if !strings.HasPrefix(proto, "HTTP/1.") {
		return nil, fmt.Errorf("%w: unsupported protocol %q", ErrMalformed, proto)
	}

	u, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, fmt.Errorf("%w: target %q: %w", ErrMalformed, target, err)
	}

	hdr, err := textproto.NewReader(br).ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: reading headers: %w", ErrMalformed, err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return &Request{
		Method: method,
		Path:   path,
		Query:  u.Query(),
		Proto:  proto,
		Header: hdr,
	}, nil
}
