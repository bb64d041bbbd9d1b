package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// NewHTTPClient returns a client with the given overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Part is one multipart form field. File parts carry a FileName.
type Part struct {
	Name     string
	FileName string
	Data     []byte
}

// MultipartBody encodes parts and returns the body with its content type.
func MultipartBody(parts ...Part) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, part := range parts {
		if part.FileName != "" {
			fw, err := w.CreateFormFile(part.Name, part.FileName)
			if err != nil {
				return nil, "", err
			}
			if _, err := fw.Write(part.Data); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := w.WriteField(part.Name, string(part.Data)); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

// Do sends req and decodes a 2xx JSON body into out. Non-2xx responses and
// transport failures come back as *Error.
func Do(ctx context.Context, client *http.Client, name string, req *http.Request, out any) error {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return Network(name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FromResponse(name, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return Malformed(name, err)
	}
	return nil
}

// JoinURL appends path to a base URL without doubling slashes.
func JoinURL(base string, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(path, "/")
}

// NormalizeLanguage maps script-qualified Chinese tags to the bare code the
// speech services accept and trims whitespace.
func NormalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	switch strings.ToLower(lang) {
	case "zh-hans", "zh-hant", "zh-cn", "zh-tw":
		return "zh"
	case "auto":
		return ""
	}
	return lang
}

// Bearer formats an Authorization header value.
func Bearer(key string) string {
	return fmt.Sprintf("Bearer %s", key)
}
