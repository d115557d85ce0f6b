package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/courier/logger"
)

const (
	testBaseURL = "https://api.example.com/v1/"
	testToken   = "token-1"
)

func noDelay(int) time.Duration { return 0 }

// newTestClient builds a client over transport with instant retries.
func newTestClient(t *testing.T, transport Transport, configure ...func(*Builder)) *Client {
	t.Helper()
	b := NewBuilder(testBaseURL, logger.Nop()).
		WithTransport(transport).
		WithRetries(DefaultMaxRetries, noDelay).
		WithLogLevel(LogOff)
	for _, fn := range configure {
		fn(b)
	}
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

// respond returns a canned response with the given status and body.
func respond(status int, body string) *RawResponse {
	return &RawResponse{StatusCode: status, Header: http.Header{}, Body: []byte(body)}
}

// scriptedTransport replays responses in order, repeating the last one.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []*RawResponse
	errs      []error
	sent      []*WireRequest
}

func (s *scriptedTransport) Send(_ context.Context, req *WireRequest) (*RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.sent)
	s.sent = append(s.sent, req.Clone())

	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if len(s.responses) == 0 {
		return respond(http.StatusOK, ""), nil
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *scriptedTransport) request(i int) *WireRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[i]
}

// logLines decodes newline-delimited JSON log output.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) snapshot() *bytes.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.NewBuffer(bytes.Clone(s.buf.Bytes()))
}
