package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
)

const uploadPath = "/api/upload"

// ErrUploadFailed is returned for any non-2xx relay response.
var ErrUploadFailed = errors.New("upload failed")

// Client streams single-file multipart uploads to the relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Upload sends data as the "file" form field. onProgress, when not nil,
// receives the percentage of the request body handed to the transport; it is
// only called when the value changes.
//
// A 2xx answer whose body is not the expected JSON yields an empty response
// and no error.
func (c *Client) Upload(ctx context.Context, name, contentType string, data []byte, onProgress func(percent int)) (dto.UploadResponse, error) {
	head, tail, formType, err := envelope(name, contentType)
	if err != nil {
		return dto.UploadResponse{}, err
	}

	total := int64(len(head) + len(data) + len(tail))
	body := io.MultiReader(bytes.NewReader(head), bytes.NewReader(data), bytes.NewReader(tail))
	if onProgress != nil {
		body = &progressReader{r: body, total: total, report: onProgress, last: -1}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return dto.UploadResponse{}, err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", formType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return dto.UploadResponse{}, fmt.Errorf("%w: %s", ErrUploadFailed, resp.Status)
	}

	var out dto.UploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return dto.UploadResponse{}, nil
	}
	return out, nil
}

// envelope renders the multipart framing around the file bytes so the body
// length is known before streaming.
func envelope(name, contentType string) (head, tail []byte, formType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	header.Set("Content-Type", contentType)
	if _, err := mw.CreatePart(header); err != nil {
		return nil, nil, "", err
	}
	head = append([]byte(nil), buf.Bytes()...)

	buf.Reset()
	if err := mw.Close(); err != nil {
		return nil, nil, "", err
	}
	tail = append([]byte(nil), buf.Bytes()...)
	return head, tail, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int((p.read*100 + p.total/2) / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
