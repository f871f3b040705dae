package idealista

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-scraper/internal/listing"
	"github.com/JakeFAU/listing-scraper/internal/provider"
)

const listingURL = "https://www.idealista.com/inmueble/12345/"

type endpoints struct {
	standby    http.HandlerFunc
	runSync    http.HandlerFunc
	standbyN   int32
	runSyncN   int32
	mu         sync.Mutex
	runSyncRaw []byte
	standbyRaw []byte
}

func newTestAdapter(t *testing.T, e *endpoints) *Adapter {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/standby/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&e.standbyN, 1)
		raw, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.standbyRaw = raw
		e.mu.Unlock()
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		e.standby(w, r)
	})
	mux.HandleFunc("/run-sync", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&e.runSyncN, 1)
		raw, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.runSyncRaw = raw
		e.mu.Unlock()
		require.Equal(t, "tok", r.URL.Query().Get("token"))
		e.runSync(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("tok")
	cfg.StandbyURL = srv.URL + "/standby/"
	cfg.RunSyncURL = srv.URL + "/run-sync"
	a, err := New(cfg, srv.Client(), zap.NewNop())
	require.NoError(t, err)
	return a
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil)
	require.ErrorIs(t, err, provider.ErrNotConfigured)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"www.idealista.com/inmueble/1/":              "https://www.idealista.com/en/inmueble/1/",
		"  https://WWW.WWW.Idealista.com/inmueble/1": "https://www.idealista.com/en/inmueble/1",
		"https://www.idealista.com/en/inmueble/1/?&": "https://www.idealista.com/en/inmueble/1/",
		"https://www.idealista.pt/imovel/9/":         "https://www.idealista.pt/imovel/9/",
		"https://www.idealista.it/immobile/9/":       "https://www.idealista.it/immobile/9/",
	}
	for in, want := range cases {
		got, ok := Normalize(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}

	_, ok := Normalize("   ")
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	a, err := New(DefaultConfig("tok"), nil, nil)
	require.NoError(t, err)

	require.True(t, a.Validate(listingURL))
	require.True(t, a.Validate("idealista.pt/imovel/1"))
	require.True(t, a.Validate("https://www.idealista.it/immobile/1/"))
	require.False(t, a.Validate("https://www.immobiliare.it/annunci/1/"))
	require.False(t, a.Validate("https://www.notidealista.com/inmueble/1"))
	require.False(t, a.Validate("https://fakeidealista.it/x"))
	require.False(t, a.Validate(""))
}

func TestScrapeUsesStandbyWhenHealthy(t *testing.T) {
	t.Parallel()

	e := &endpoints{
		standby: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"title":"Piso","price":"1.234,56 €","gallery":[{"url":"a.jpg"}]}`)
		},
		runSync: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `[]`)
		},
	}
	a := newTestAdapter(t, e)

	items, err := a.Scrape(context.Background(), listingURL)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.EqualValues(t, 1, atomic.LoadInt32(&e.standbyN))
	require.Zero(t, atomic.LoadInt32(&e.runSyncN))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(e.standbyRaw, &sent))
	require.Equal(t, "https://www.idealista.com/en/inmueble/12345/", sent["Url"])
	require.EqualValues(t, 2, sent["maxRetries"])
	require.EqualValues(t, 30, sent["timeout"])
	require.Equal(t, true, sent["saveMapImages"])
	require.Equal(t, true, sent["includeGallery"])
	require.Equal(t, true, sent["extractContactInfo"])
	require.Equal(t, map[string]any{
		"useApifyProxy":    true,
		"apifyProxyGroups": []any{"RESIDENTIAL"},
	}, sent["proxyConfig"])

	got := listing.Canonicalize(Name, items[0])
	require.InDelta(t, 1234.56, got.Price, 1e-9)
	require.Equal(t, []string{"a.jpg"}, got.Images)
	require.Equal(t, "https://www.idealista.com/en/inmueble/12345/", *got.URL)
}

func TestScrapeFallsBackExactlyOnce(t *testing.T) {
	t.Parallel()

	standbyFailures := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, `{"error":"cold start"}`)
		},
		"failed status": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"status":"failed","error":"blocked"}`)
		},
		"malformed body": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `<html>`)
		},
	}
	for name, standby := range standbyFailures {
		standby := standby
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			e := &endpoints{
				standby: standby,
				runSync: func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusOK, `{"items":[{"title":"Casa","price":"350.000 €"}]}`)
				},
			}
			a := newTestAdapter(t, e)

			items, err := a.Scrape(context.Background(), listingURL)
			require.NoError(t, err)
			require.Len(t, items, 1)
			require.EqualValues(t, 1, atomic.LoadInt32(&e.standbyN))
			require.EqualValues(t, 1, atomic.LoadInt32(&e.runSyncN))
			require.JSONEq(t, string(e.standbyRaw), string(e.runSyncRaw))
			require.InDelta(t, 350000, listing.Canonicalize(Name, items[0]).Price, 0)
		})
	}
}

func TestScrapeSurfacesFallbackError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		runSync http.HandlerFunc
		kind    error
	}{
		{"empty dataset", func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, `[]`) }, provider.ErrUpstream},
		{"unknown envelope", func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, `{"data":1}`) }, provider.ErrUpstream},
		{"bad status", func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusBadGateway, `{}`) }, provider.ErrTransport},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := &endpoints{
				standby: func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusOK, `{"status":"failed"}`)
				},
				runSync: tc.runSync,
			}
			a := newTestAdapter(t, e)

			_, err := a.Scrape(context.Background(), listingURL)
			require.ErrorIs(t, err, tc.kind)

			var perr *provider.Error
			require.ErrorAs(t, err, &perr)
			require.Equal(t, "run-sync", perr.Op)
			require.EqualValues(t, 1, atomic.LoadInt32(&e.standbyN))
			require.EqualValues(t, 1, atomic.LoadInt32(&e.runSyncN))
		})
	}
}

func TestScrapeInvalidURLMakesNoCall(t *testing.T) {
	t.Parallel()

	e := &endpoints{
		standby: func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, `{}`) },
		runSync: func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, `[]`) },
	}
	a := newTestAdapter(t, e)

	_, err := a.Scrape(context.Background(), "https://www.zillow.com/homedetails/1")
	require.ErrorIs(t, err, provider.ErrInvalidURL)
	require.Zero(t, atomic.LoadInt32(&e.standbyN))
	require.Zero(t, atomic.LoadInt32(&e.runSyncN))
}
