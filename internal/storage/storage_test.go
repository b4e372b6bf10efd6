package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabase_DeleteTreatsMissingAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		if strings.HasSuffix(r.URL.Path, "/gone.pdf") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sb := NewSupabase(srv.URL, "secret", "evidence")
	assert.NoError(t, sb.Delete(context.Background(), "cases/x/gone.pdf"))
	assert.Error(t, sb.Delete(context.Background(), "cases/x/broken.pdf"))
}

func TestSupabase_SignedURLIsAbsolute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/sign/evidence/cases/a/b.pdf", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"expiresIn":60}`, string(body))
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/evidence/cases/a/b.pdf?token=abc"}`))
	}))
	defer srv.Close()

	sb := NewSupabase(srv.URL+"/", "secret", "evidence")
	url, err := sb.SignedURL(context.Background(), "cases/a/b.pdf", 60)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/storage/v1/object/sign/evidence/cases/a/b.pdf?token=abc", url)
}

func TestSupabase_UploadSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("duplicate"))
	}))
	defer srv.Close()

	sb := NewSupabase(srv.URL, "secret", "evidence")
	err := sb.Upload(context.Background(), "k", strings.NewReader("%PDF"), "application/pdf", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestSupabase_PublicURL(t *testing.T) {
	sb := NewSupabase("https://p.supabase.co", "k", "avatars")
	assert.Equal(t, "https://p.supabase.co/storage/v1/object/public/avatars/users/1/a.png", sb.PublicURL("users/1/a.png"))
	assert.Equal(t, "", sb.PublicURL(""))
}

func TestKeys(t *testing.T) {
	caseID := uuid.New()
	key := DocumentKey(caseID, `..\..\My Deed (1).pdf`)
	assert.True(t, strings.HasPrefix(key, "cases/"+caseID.String()+"/"))
	assert.True(t, strings.HasSuffix(key, "-My_Deed__1_.pdf"))
	assert.NotContains(t, key, "..")

	userID := uuid.New()
	avatar := UserFileKey(userID, "avatar", "Me.JPG")
	assert.True(t, strings.HasPrefix(avatar, "users/"+userID.String()+"/avatar/"))
	assert.True(t, strings.HasSuffix(avatar, ".jpg"))
}

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upload(ctx, "a", strings.NewReader("x"), "text/plain", 1))
	assert.True(t, m.Has("a"))
	_, err := m.SignedURL(ctx, "a", 60)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Delete(ctx, "a"))
	assert.False(t, m.Has("a"))
	_, err = m.SignedURL(ctx, "a", 60)
	assert.Error(t, err)
}
