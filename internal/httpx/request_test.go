package httpx

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	return ReadRequest(bufio.NewReader(strings.NewReader(raw)))
}

func TestReadRequestBasic(t *testing.T) {
	req, err := parse(t, "GET /pdf/file.pdf HTTP/1.1\r\nHost: localhost:8080\r\n\r\n")
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/pdf/file.pdf", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, "localhost:8080", req.Header.Get("Host"))
}

func TestReadRequestQueryAndProcessFlag(t *testing.T) {
	req, err := parse(t, "GET /img/photo.png?process=true&x=1 HTTP/1.1\r\n\r\n")
	require.NoError(t, err)

	assert.Equal(t, "/img/photo.png", req.Path)
	assert.Equal(t, "1", req.Query.Get("x"))
	assert.True(t, req.ProcessRequested())

	req, err = parse(t, "GET /img/photo.png?process=false HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.False(t, req.ProcessRequested())

	req, err = parse(t, "GET /img/photo.png HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.False(t, req.ProcessRequested())
}

func TestReadRequestEscapedPath(t *testing.T) {
	req, err := parse(t, "GET /pdf/my%20file.pdf HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/pdf/my file.pdf", req.Path)
}

func TestReadRequestMalformed(t *testing.T) {
	cases := map[string]string{
		"missing parts":    "GET /\r\n\r\n",
		"empty":            "\r\n\r\n",
		"not http":         "GET / SPDY/3\r\n\r\n",
		"garbage":          "\x00\x01\x02\r\n\r\n",
		"bad header block": "GET / HTTP/1.1\r\nno-colon-here\r\n\r\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

// meteredReader counts the bytes ReadRequest actually pulls from the
// connection.
type meteredReader struct {
	r io.Reader
	n int
}

func (m *meteredReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	m.n += n
	return n, err
}

func TestReadRequestBoundsOversizedInput(t *testing.T) {
	t.Run("request line", func(t *testing.T) {
		src := &meteredReader{r: strings.NewReader("GET /" + strings.Repeat("a", 1<<20) + " HTTP/1.1\r\n\r\n")}
		_, err := ReadRequest(src)
		require.ErrorIs(t, err, ErrMalformed)
		assert.LessOrEqual(t, src.n, maxHeaderBytes, "oversized line must be rejected without buffering it")
	})

	t.Run("header block", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("GET / HTTP/1.1\r\n")
		for i := 0; b.Len() < 1<<20; i++ {
			fmt.Fprintf(&b, "X-Pad-%d: %s\r\n", i, strings.Repeat("b", 1024))
		}
		b.WriteString("\r\n")

		src := &meteredReader{r: strings.NewReader(b.String())}
		_, err := ReadRequest(src)
		require.ErrorIs(t, err, ErrMalformed)
		assert.LessOrEqual(t, src.n, maxHeaderBytes)
	})
}

func TestReadRequestEmptyPathDefaultsToRoot(t *testing.T) {
	req, err := parse(t, "GET http://example.com HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/", req.Path)
}
