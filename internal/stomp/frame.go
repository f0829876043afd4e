// Package stomp implements a STOMP 1.2 client over a websocket connection.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Frame commands
const (
	CommandConnect     = "CONNECT"
	CommandConnected   = "CONNECTED"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandMessage     = "MESSAGE"
	CommandReceipt     = "RECEIPT"
	CommandError       = "ERROR"
	CommandDisconnect  = "DISCONNECT"
)

// Frame headers
const (
	HeaderAcceptVersion = "accept-version"
	HeaderHost          = "host"
	HeaderHeartBeat     = "heart-beat"
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderAck           = "ack"
	HeaderSubscription  = "subscription"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
	HeaderContentLength = "content-length"
	HeaderMessage       = "message"
	HeaderVersion       = "version"
)

var (
	// ErrMalformedFrame is returned when a frame cannot be decoded
	ErrMalformedFrame = errors.New("malformed frame")

	headerEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	headerUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r", `\n`, "\n", `\c`, ":")
)

// Frame is one STOMP frame
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

// NewFrame creates a frame from alternating header keys and values
func NewFrame(command string, headers ...string) *Frame {
	f := &Frame{Command: command, Headers: make(map[string]string, len(headers)/2)}
	for i := 0; i+1 < len(headers); i += 2 {
		f.Headers[headers[i]] = headers[i+1]
	}
	return f
}

// Header returns a header value, or the empty string
func (f *Frame) Header(key string) string {
	return f.Headers[key]
}

// Encode renders the frame. Headers are written in key order.
// CONNECT and CONNECTED headers are not escaped.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		if k != HeaderContentLength {
			keys = append(keys, k)
		}
	}
	if len(f.Body) > 0 {
		keys = append(keys, HeaderContentLength)
	}
	sort.Strings(keys)

	escape := f.Command != CommandConnect && f.Command != CommandConnected
	for _, k := range keys {
		v := f.Headers[k]
		if k == HeaderContentLength {
			v = strconv.Itoa(len(f.Body))
		}
		if escape {
			k, v = headerEscaper.Replace(k), headerEscaper.Replace(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Decode parses one frame. It returns nil and no error for a heart-beat.
func Decode(data []byte) (*Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return nil, nil
	}

	headerEnd := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headerEnd < 0 || crlf < headerEnd) {
		headerEnd, sepLen = crlf, 4
	}
	if headerEnd < 0 {
		return nil, fmt.Errorf("%w: missing header terminator", ErrMalformedFrame)
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:headerEnd]), "\r\n", "\n"), "\n")
	f := &Frame{Command: lines[0], Headers: make(map[string]string, len(lines)-1)}
	if f.Command == "" {
		return nil, fmt.Errorf("%w: empty command", ErrMalformedFrame)
	}

	unescape := f.Command != CommandConnect && f.Command != CommandConnected
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformedFrame, line)
		}
		if unescape {
			k, v = headerUnescaper.Replace(k), headerUnescaper.Replace(v)
		}
		// repeated headers: the first occurrence wins
		if _, seen := f.Headers[k]; !seen {
			f.Headers[k] = v
		}
	}

	body := data[headerEnd+sepLen:]
	if cl, ok := f.Headers[HeaderContentLength]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(body) {
			return nil, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, cl)
		}
		f.Body = body[:n]
		return f, nil
	}

	end := bytes.IndexByte(body, 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: missing frame terminator", ErrMalformedFrame)
	}
	f.Body = body[:end]
	return f, nil
}
