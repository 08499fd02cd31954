package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Presigning is local computation; no request reaches the endpoint.
func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.Bucket == "" {
		cfg.Bucket = "blog-media"
	}
	cfg.AccessKey = "minioadmin"
	cfg.SecretKey = "minioadmin"
	svc, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, slog.Default())
	assert.Error(t, err)
}

func TestPresignUpload_PathStyleEndpoint(t *testing.T) {
	svc := newTestService(t, Config{
		Endpoint:     "http://127.0.0.1:9000",
		UsePathStyle: true,
	})
	actor := &model.Principal{UserID: "u1"}

	up, err := svc.PresignUpload(context.Background(), actor, "image/PNG")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.Key, "featured/u1/"))
	assert.True(t, strings.HasSuffix(up.Key, ".png"))
	assert.Equal(t, "PUT", up.Method)
	assert.Equal(t, "http://127.0.0.1:9000/blog-media/"+up.Key, up.PublicURL)

	u, err := url.Parse(up.UploadURL)
	require.NoError(t, err)
	assert.Equal(t, "/blog-media/"+up.Key, u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestPresignUpload_PublicBaseURL(t *testing.T) {
	svc := newTestService(t, Config{Region: "eu-west-1", PublicBaseURL: "https://cdn.example.com/"})

	up, err := svc.PresignUpload(context.Background(), &model.Principal{UserID: "u1"}, "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/"+up.Key, up.PublicURL)
}

func TestPresignUpload_Rejects(t *testing.T) {
	svc := newTestService(t, Config{})

	_, err := svc.PresignUpload(context.Background(), nil, "image/png")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = svc.PresignUpload(context.Background(), &model.Principal{UserID: "u1"}, "application/pdf")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
