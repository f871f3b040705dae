package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoSendsJSONAndReadsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"a":1}`, string(raw))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"r1","n":1.5}}`))
	}))
	t.Cleanup(srv.Close)

	resp, err := Do(context.Background(), srv.Client(), Call{
		Provider: "test",
		Endpoint: "submit",
		Method:   http.MethodPost,
		URL:      srv.URL,
		Header:   http.Header{"Authorization": []string{"Bearer tok"}},
		Body:     map[string]int{"a": 1},
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Data struct {
			ID string      `json:"id"`
			N  json.Number `json:"n"`
		} `json:"data"`
	}
	require.NoError(t, resp.Decode("test", "submit", &out))
	require.Equal(t, "r1", out.Data.ID)
	require.Equal(t, "1.5", out.Data.N.String())
}

func TestDoNetworkFailureIsTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := Do(context.Background(), http.DefaultClient, Call{
		Provider: "test",
		Endpoint: "run",
		Method:   http.MethodGet,
		URL:      addr + "/x?token=s3cret",
	})
	require.ErrorIs(t, err, ErrTransport)
	require.NotContains(t, err.Error(), "s3cret")
}

func TestDoHonoursTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	_, err := Do(context.Background(), srv.Client(), Call{
		Provider: "test",
		Endpoint: "slow",
		Method:   http.MethodGet,
		URL:      srv.URL,
		Timeout:  20 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResponseErrors(t *testing.T) {
	t.Parallel()

	resp := &Response{StatusCode: http.StatusBadGateway, Body: []byte(strings.Repeat("x", 300))}
	require.False(t, resp.OK())

	serr := resp.StatusError("test", "run", ErrTransport)
	require.ErrorIs(t, serr, ErrTransport)
	require.Equal(t, http.StatusBadGateway, serr.StatusCode)
	require.Contains(t, serr.Error(), "...")

	var v map[string]any
	err := (&Response{StatusCode: 200, Body: []byte("{nope")}).Decode("test", "run", &v)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(time.Second)
	require.NotNil(t, c.Transport)
	require.Zero(t, c.Timeout)
}
