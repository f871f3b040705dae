package ranking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/provider"
)

func TestNewHTTPMatcherRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPMatcher(" ", 0, nil, nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestMatchPostsSaleListing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/match", r.URL.Path)
		var body struct {
			Sale map[string]any `json:"sale_listing"`
			TopK int            `json:"top_k"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 2, body.TopK)
		require.Equal(t, "Villa", body.Sale["title"])
		require.Equal(t, "Provided Listing", body.Sale["platform"])
		_, _ = w.Write([]byte(`{"matches":[{"id":1},{"id":2},{"id":3},"junk"]}`))
	}))
	t.Cleanup(srv.Close)

	m, err := NewHTTPMatcher(srv.URL, 0, srv.Client(), zap.NewNop())
	require.NoError(t, err)

	sale := Sale{Listing: listing.Canonicalize("p", listing.Payload{"title": "Villa"}), Platform: "Provided Listing"}
	got, err := m.Match(context.Background(), sale, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0]["id"].(json.Number).String())
}

func TestMatchAcceptsBareArray(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a"}]`))
	}))
	t.Cleanup(srv.Close)

	m, err := NewHTTPMatcher(srv.URL, 0, srv.Client(), nil)
	require.NoError(t, err)
	got, err := m.Match(context.Background(), Sale{}, 10)
	require.NoError(t, err)
	require.Equal(t, []Match{{"id": "a"}}, got)
}

func TestMatchErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]func(http.ResponseWriter){
		"status":   func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) },
		"envelope": func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{"matches":"nope"}`)) },
		"json":     func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{`)) },
	}
	for name, respond := range cases {
		respond := respond
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { respond(w) }))
		m, err := NewHTTPMatcher(srv.URL, 0, srv.Client(), nil)
		require.NoError(t, err)
		_, err = m.Match(context.Background(), Sale{}, 5)
		require.ErrorIs(t, err, provider.ErrUpstream, name)
		srv.Close()
	}
}
