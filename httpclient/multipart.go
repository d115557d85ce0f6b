package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"

	"github.com/gaborage/courier/internal/reflection"
)

// Part is one multipart/form-data section. A part with both FileName and
// MimeType is sent as a file; otherwise as a plain field.
type Part struct {
	Name     string
	Data     []byte
	FileName string
	MimeType string
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload sends parts as multipart/form-data. Target parameters become extra
// fields after the parts and Encoding is ignored. Method defaults to POST.
func (c *Client) Upload(ctx context.Context, target Target, parts []Part) *Call {
	return c.launch(ctx, func() (*WireRequest, error) {
		if strings.TrimSpace(target.Method) == "" {
			target.Method = http.MethodPost
		}
		req, err := c.buildRequest(target, false)
		if err != nil {
			return nil, err
		}

		body, contentType, err := encodeMultipart(parts, target.Parameters)
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.Header.Set(headerContentType, contentType)
		return req, nil
	})
}

// Download fetches target into memory.
func (c *Client) Download(ctx context.Context, target Target) ([]byte, error) {
	resp, err := c.Do(ctx, target)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func encodeMultipart(parts []Part, fields map[string]any) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.FileName != "" && p.MimeType != "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
				quoteEscaper.Replace(p.Name), quoteEscaper.Replace(p.FileName)))
			h.Set("Content-Type", p.MimeType)
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.Name)))
		}
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", NewEncodingError("multipart part "+p.Name, err)
		}
		if _, err := pw.Write(p.Data); err != nil {
			return nil, "", NewEncodingError("multipart part "+p.Name, err)
		}
	}

	for _, k := range slices.Sorted(maps.Keys(fields)) {
		for _, v := range reflection.Flatten(fields[k]) {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", NewEncodingError("multipart field "+k, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", NewEncodingError("multipart close", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
