package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaledge/core"
)

func TestClient(t *testing.T) {
	var gotHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = append(gotHeaders, r.Header.Get(core.SessionIDHeader))
		switch r.URL.Path {
		case "/echo":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(in)
		case "/form":
			_ = r.ParseForm()
			_ = json.NewEncoder(w).Encode(map[string]string{"image": r.PostForm.Get("image")})
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "Problem not found"}`))
		case "/boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	ctx := core.WithSessionID(context.Background(), "s-1")

	var out map[string]string
	require.NoError(t, c.PostJSON(ctx, "/echo", map[string]string{"a": "b"}, &out))
	assert.Equal(t, map[string]string{"a": "b"}, out)

	out = nil
	require.NoError(t, c.PostForm(context.Background(), "/form", url.Values{"image": {"data:image/png;base64,AAAA"}}, &out))
	assert.Equal(t, "data:image/png;base64,AAAA", out["image"])

	require.NoError(t, c.PostJSON(ctx, "/reset", nil, nil))

	err := c.GetJSON(ctx, "/missing", &out)
	var sErr *StatusError
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, http.StatusNotFound, sErr.Code)
	assert.Equal(t, "Problem not found", sErr.Message)
	assert.True(t, IsStatus(err, http.StatusNotFound))

	err = c.GetJSON(ctx, "/boom", nil)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Contains(t, err.Error(), "Bad Gateway")

	assert.Equal(t, []string{"s-1", "", "s-1", "s-1", "s-1"}, gotHeaders)
}

func TestClient_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := NewClient(srv.URL, time.Second).GetJSON(context.Background(), "/status", nil)
	require.Error(t, err)
	var sErr *StatusError
	assert.False(t, errors.As(err, &sErr))
}
