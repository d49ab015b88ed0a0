package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// MaxUploadSize caps images accepted for upload.
const MaxUploadSize = 5 << 20

// uploadURLFields are the reply fields that may carry the stored image URL,
// in order of preference.
var uploadURLFields = []string{"url", "imageUrl", "filePath", "downloadUrl"}

// UploadImage stores an image through the backend's upload endpoint and
// returns its public URL. The file is sent as the multipart field "image".
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return "", apperrors.Server("build upload body", err)
	}
	n, err := io.Copy(part, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", apperrors.Server("read upload", err)
	}
	if n > MaxUploadSize {
		return "", apperrors.InvalidInput("image is larger than 5 MB")
	}
	if err := mw.Close(); err != nil {
		return "", apperrors.Server("build upload body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return "", apperrors.Server("build backend request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", apperrors.Server("image upload failed, enter the image URL manually",
			errors.New(resp.message(http.StatusText(resp.status))))
	}

	url := uploadURL(resp.body)
	if url == "" {
		return "", apperrors.Server("image upload returned no URL", nil)
	}
	return url, nil
}

// uploadURL picks the image URL out of an upload reply. A reply that is not
// a JSON object is the URL itself.
func uploadURL(body []byte) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		var s string
		if json.Unmarshal(body, &s) == nil {
			return s
		}
		return string(body)
	}
	for _, key := range uploadURLFields {
		var s string
		if json.Unmarshal(fields[key], &s) == nil && s != "" {
			return s
		}
	}
	return string(body)
}
