package httpclient_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard.go/httpclient"
	"github.com/taskboard/taskboard.go/pkg/auth"
	"github.com/taskboard/taskboard.go/pkg/constants"
	"github.com/taskboard/taskboard.go/pkg/logger"
)

func silentLogger() logger.Logger {
	return logger.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := httpclient.New("")
	assert.ErrorIs(t, err, constants.ErrNoEndpoint)

	_, err = httpclient.New("ws://localhost:3001")
	assert.ErrorContains(t, err, "scheme")

	c, err := httpclient.New("http://localhost:3001/")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestDoSetsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := httpclient.New(srv.URL,
		httpclient.WithLogger(silentLogger()),
		httpclient.WithTokenSource(auth.StaticTokenSource("tok-123")),
	)
	require.NoError(t, err)

	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/api/tasks", map[string]any{"title": "a"}, nil))

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer tok-123", got.Get("Authorization"))
	assert.Regexp(t, "^[A-Za-z0-9]{16}$", got.Get("X-Request-Id"))
}

func TestDoDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"t1","title":"write docs"}`))
	}))
	defer srv.Close()

	c, err := httpclient.New(srv.URL, httpclient.WithLogger(silentLogger()))
	require.NoError(t, err)

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/api/tasks/t1", nil, &out))
	assert.Equal(t, "t1", out.ID)
	assert.Equal(t, "write docs", out.Title)
}

func TestDoSurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"task was modified by someone else"}`))
	}))
	defer srv.Close()

	c, err := httpclient.New(srv.URL, httpclient.WithLogger(silentLogger()))
	require.NoError(t, err)

	err = c.Do(context.Background(), http.MethodPatch, "/api/tasks/t1", map[string]any{"title": "b"}, nil)
	require.Error(t, err)

	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "task was modified by someone else", apiErr.Error())
}

func TestDoFallbackErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	c, err := httpclient.New(srv.URL, httpclient.WithLogger(silentLogger()))
	require.NoError(t, err)

	err = c.Do(context.Background(), http.MethodGet, "/api/tasks", nil, nil)
	require.Error(t, err)

	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "request failed with status 418", apiErr.Error())
}

func TestDoTokenSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server when the token source fails")
	}))
	defer srv.Close()

	tokenErr := errors.New("refresh endpoint down")
	c, err := httpclient.New(srv.URL,
		httpclient.WithLogger(silentLogger()),
		httpclient.WithTokenSource(auth.NewRefreshingTokenSource("", func(ctx context.Context) (string, error) {
			return "", tokenErr
		})),
	)
	require.NoError(t, err)

	err = c.Do(context.Background(), http.MethodGet, "/api/tasks", nil, nil)
	assert.ErrorIs(t, err, tokenErr)
}

func TestResourceVerbsAndPaths(t *testing.T) {
	type call struct {
		method string
		path   string
		query  string
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery})
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c, err := httpclient.New(srv.URL, httpclient.WithLogger(silentLogger()))
	require.NoError(t, err)
	tasks := c.Resource("/api/tasks")

	ctx := context.Background()
	require.NoError(t, tasks.Create(ctx, map[string]any{"title": "a"}))
	require.NoError(t, tasks.Update(ctx, "t1", map[string]any{"title": "b"}))
	require.NoError(t, tasks.Delete(ctx, "t1"))

	var entity map[string]any
	require.NoError(t, tasks.Get(ctx, "t1", &entity))

	var listing []map[string]any
	require.NoError(t, tasks.List(ctx, url.Values{"project_id": {"p1"}}, &listing))

	require.Len(t, calls, 5)
	assert.Equal(t, call{http.MethodPost, "/api/tasks", ""}, calls[0])
	assert.Equal(t, call{http.MethodPatch, "/api/tasks/t1", ""}, calls[1])
	assert.Equal(t, call{http.MethodDelete, "/api/tasks/t1", ""}, calls[2])
	assert.Equal(t, call{http.MethodGet, "/api/tasks/t1", ""}, calls[3])
	assert.Equal(t, call{http.MethodGet, "/api/tasks", "project_id=p1"}, calls[4])
}
