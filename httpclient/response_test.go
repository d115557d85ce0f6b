package httpclient

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestFetchJSON(t *testing.T) {
	transport := &scriptedTransport{responses: []*RawResponse{respond(http.StatusOK, `{"id":42,"name":"gopher"}`)}}
	c := newTestClient(t, transport)

	u, resp, err := Fetch(t.Context(), c, Target{Path: "users/42"}, JSON[user]())
	require.NoError(t, err)
	assert.Equal(t, user{ID: 42, Name: "gopher"}, u)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetchDecodingFailure(t *testing.T) {
	transport := &scriptedTransport{responses: []*RawResponse{respond(http.StatusOK, `not json`)}}
	c := newTestClient(t, transport)

	u, resp, err := Fetch(t.Context(), c, Target{Path: "users/42"}, JSON[user]())
	assert.ErrorIs(t, err, ErrDecoding)
	assert.Zero(t, u)
	require.NotNil(t, resp)
	assert.Equal(t, 1, transport.count(), "decoding failures are not retried")
}

func TestFetchMapperErrorPassthrough(t *testing.T) {
	c := newTestClient(t, &scriptedTransport{})
	custom := NewUnknownError("mapper says no")

	_, _, err := Fetch[int](t.Context(), c, Target{Path: "a"}, func([]byte, *Response) (int, error) {
		return 0, custom
	})
	var got *Error
	require.True(t, errors.As(err, &got))
	assert.Same(t, custom, got)
}

func TestFetchServerErrorKeepsResponse(t *testing.T) {
	transport := &scriptedTransport{responses: []*RawResponse{respond(http.StatusConflict, `{"error":"exists"}`)}}
	c := newTestClient(t, transport)

	s, resp, err := Fetch[string](t.Context(), c, Target{Path: "a"}, String)
	assert.True(t, IsHTTPStatusError(err, http.StatusConflict))
	assert.Empty(t, s)
	require.NotNil(t, resp)
	assert.JSONEq(t, `{"error":"exists"}`, string(resp.Body))

	var clientErr *Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, resp.Body, clientErr.Body)
}

func TestBuiltinMappers(t *testing.T) {
	b, err := RawBytes([]byte("raw"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)

	s, err := String([]byte("text"), nil)
	require.NoError(t, err)
	assert.Equal(t, "text", s)
}
