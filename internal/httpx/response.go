package httpx

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is one outgoing HTTP/1.1 response. Connections are never reused,
// so every response carries Connection: close.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	// LastModified is emitted only for file-backed resources.
	LastModified time.Time
	// Allow is emitted on 405 responses.
	Allow string
	// HeadOnly suppresses the body while keeping every header, including
	// Content-Length, identical to the GET form.
	HeadOnly bool
}

var statusText = map[int]string{
	http.StatusOK:                  "OK",
	http.StatusAccepted:            "Accepted",
	http.StatusBadRequest:          "Bad Request",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not Found",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
	http.StatusConflict:            "Conflict",
	http.StatusInternalServerError: "Internal Server Error",
}

// StatusText returns the reason phrase for the handful of codes the server
// emits.
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return http.StatusText(code)
}

// WriteResponse serializes resp to w. serverName becomes the Server header.
func WriteResponse(w io.Writer, serverName string, resp *Response) error {
	bw := bufio.NewWriter(w)

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.Status, StatusText(resp.Status))
	fmt.Fprintf(bw, "Date: %s\r\n", time.Now().UTC().Format(http.TimeFormat))
	fmt.Fprintf(bw, "Server: %s\r\n", serverName)
	fmt.Fprintf(bw, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(bw, "Content-Length: %d\r\n", len(resp.Body))
	if !resp.LastModified.IsZero() {
		fmt.Fprintf(bw, "Last-Modified: %s\r\n", resp.LastModified.UTC().Format(http.TimeFormat))
	}
	if resp.Allow != "" {
		fmt.Fprintf(bw, "Allow: %s\r\n", resp.Allow)
	}
	fmt.Fprintf(bw, "Accept-Ranges: bytes\r\n")
	fmt.Fprintf(bw, "Access-Control-Allow-Origin: *\r\n")
	fmt.Fprintf(bw, "Connection: close\r\n\r\n")

	if !resp.HeadOnly {
		if _, err := bw.Write(resp.Body); err != nil {
			return err
		}
	}
	return bw.Flush()
}
