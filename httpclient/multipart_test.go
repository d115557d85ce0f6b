package httpclient

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/courier/logger"
)

type receivedPart struct {
	name, fileName, contentType, data string
}

func TestUploadSendsMultipartBody(t *testing.T) {
	var (
		method string
		parts  []receivedPart
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(p)
			parts = append(parts, receivedPart{
				name:        p.FormName(),
				fileName:    p.FileName(),
				contentType: p.Header.Get("Content-Type"),
				data:        string(data),
			})
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"uploaded":true}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewBuilder(server.URL+"/", logger.Nop()).WithLogLevel(LogOff).Build()
	require.NoError(t, err)

	call := c.Upload(t.Context(), Target{
		Path:       "files",
		Parameters: map[string]any{"album": "summer", "tags": []string{"a", "b"}},
	}, []Part{
		{Name: "photo", Data: []byte("\x89PNG"), FileName: "beach.png", MimeType: "image/png"},
		{Name: "caption", Data: []byte("sunset")},
	})
	resp, err := call.Wait()
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, http.MethodPost, method)

	require.Len(t, parts, 5)
	assert.Equal(t, receivedPart{name: "photo", fileName: "beach.png", contentType: "image/png", data: "\x89PNG"}, parts[0])
	assert.Equal(t, receivedPart{name: "caption", data: "sunset"}, parts[1])
	assert.Equal(t, "album", parts[2].name)
	assert.Equal(t, "summer", parts[2].data)
	assert.Equal(t, []string{"tags", "tags"}, []string{parts[3].name, parts[4].name})
}

func TestEncodeMultipartLayout(t *testing.T) {
	body, contentType, err := encodeMultipart([]Part{
		{Name: "doc", Data: []byte("hello"), FileName: `a"b.txt`, MimeType: "text/plain"},
		{Name: "note", Data: []byte("x"), FileName: "ignored-without-mime"},
	}, nil)
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	boundary := params["boundary"]
	require.NotEmpty(t, boundary)

	s := string(body)
	assert.True(t, strings.HasPrefix(s, "--"+boundary+"\r\n"))
	assert.True(t, strings.HasSuffix(s, "--"+boundary+"--\r\n"))
	assert.Contains(t, s, `Content-Disposition: form-data; name="doc"; filename="a\"b.txt"`)
	assert.Contains(t, s, "Content-Type: text/plain")
	assert.Contains(t, s, `Content-Disposition: form-data; name="note"`+"\r\n")
	assert.NotContains(t, s, "ignored-without-mime")
}

func TestUploadRespectsExplicitMethod(t *testing.T) {
	transport := &scriptedTransport{}
	c := newTestClient(t, transport)

	_, err := c.Upload(t.Context(), Target{Path: "files/1", Method: http.MethodPut}, []Part{{Name: "f", Data: []byte("x")}}).Wait()
	require.NoError(t, err)

	sent := transport.request(0)
	assert.Equal(t, http.MethodPut, sent.Method)
	assert.True(t, strings.HasPrefix(sent.Header.Get("Content-Type"), "multipart/form-data; boundary="))
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/report.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	t.Cleanup(server.Close)

	c, err := NewBuilder(server.URL+"/", logger.Nop()).WithLogLevel(LogOff).Build()
	require.NoError(t, err)

	data, err := c.Download(t.Context(), Target{Path: "files/report.csv"})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	_, err = c.Download(t.Context(), Target{Path: "files/missing"})
	assert.True(t, IsHTTPStatusError(err, http.StatusNotFound))
}
