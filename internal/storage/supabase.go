package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

/*
Supabase wraps the handful of Supabase Storage REST calls the platform needs.

Authorization: a legacy service_role JWT needs both `apikey` and
`Authorization: Bearer <token>`; the newer secret keys accept the same pair.
*/
type Supabase struct {
	baseURL string // e.g. https://<project>.supabase.co
	apiKey  string // service_role JWT or secret API key
	bucket  string
	client  *http.Client
}

// NewSupabase builds a client for one bucket.
func NewSupabase(baseURL, apiKey, bucket string) *Supabase {
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError is a non-2xx answer from the storage API.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase %s: %d | %s", e.Op, e.Status, e.Body)
}

func (s *Supabase) objectURL(kind, key string) string {
	if kind == "" {
		return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)
	}
	return fmt.Sprintf("%s/storage/v1/object/%s/%s/%s", s.baseURL, kind, s.bucket, key)
}

// call sends an authorized request and decodes a JSON answer into out when non-nil.
func (s *Supabase) call(ctx context.Context, op, method, url string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("supabase %s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &StatusError{Op: op, Status: res.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// Upload sends a new object: POST /storage/v1/object/{bucket}/{key}
func (s *Supabase) Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) error {
	if size > 0 {
		r = io.LimitReader(r, size)
	}
	return s.call(ctx, "upload", http.MethodPost, s.objectURL("", key), r, contentType, nil)
}

// SignedURL creates a short-lived download link:
// POST /storage/v1/object/sign/{bucket}/{key}  body: {"expiresIn": <seconds>}
func (s *Supabase) SignedURL(ctx context.Context, key string, expiresInSeconds int) (string, error) {
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	err := s.call(ctx, "sign", http.MethodPost, s.objectURL("sign", key),
		jsonBody(map[string]int{"expiresIn": expiresInSeconds}), "application/json", &out)
	if err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", errors.New("supabase sign: empty signedURL in response")
	}
	// The API answers with a path relative to /storage/v1.
	return s.baseURL + "/storage/v1" + out.SignedURL, nil
}

// PublicURL is the unauthenticated link for objects in a public bucket (avatars).
func (s *Supabase) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return s.objectURL("public", key)
}

// Delete removes one object. 404 counts as success (already gone).
func (s *Supabase) Delete(ctx context.Context, key string) error {
	err := s.call(ctx, "delete", http.MethodDelete, s.objectURL("", key), nil, "", nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// BulkDelete removes several objects in one call:
// POST /storage/v1/object/{bucket}/remove  body: {"prefixes": [...]}
func (s *Supabase) BulkDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.call(ctx, "bulk delete", http.MethodPost, s.objectURL("", "remove"),
		jsonBody(map[string][]string{"prefixes": keys}), "application/json", nil)
}
