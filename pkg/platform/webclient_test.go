package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds() Credentials {
	return Credentials{
		SessionID: "ASPSESSIONIDABC=xyz",
		Cookies:   map[string]string{"ASPSESSIONIDABC": "xyz"},
	}
}

func newWebClientFor(srv *httptest.Server) *WebClient {
	return NewWebClient(MarketInOut, Endpoints{
		Probe:      srv.URL + "/probe",
		Watchlists: srv.URL + "/watchlists",
		Refresh:    srv.URL + "/refresh",
	}, srv.Client())
}

func TestWebClientProbeSendsCookies(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("ASPSESSIONIDABC"); err == nil {
			gotCookie = c.Value
		}
	}))
	defer srv.Close()

	client := newWebClientFor(srv)
	require.NoError(t, client.Probe(context.Background(), testCreds()))
	assert.Equal(t, "xyz", gotCookie)
}

func TestWebClientProbeAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newWebClientFor(srv).Probe(context.Background(), testCreds())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
}

func TestWebClientLoginRedirectIsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer srv.Close()

	client := NewWebClient(MarketInOut, Endpoints{Probe: srv.URL + "/probe"}, nil)
	err := client.Probe(context.Background(), testCreds())

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status, "a redirect to login means the session is dead")
}

func TestWebClientListWatchlistsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"1","name":"Tech"},{"id":"2","name":"Energy"}]`))
	}))
	defer srv.Close()

	lists, err := newWebClientFor(srv).ListWatchlists(context.Background(), testCreds())
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "Energy", lists[1].Name)
}

func TestWebClientListWatchlistsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"watchlists":[{"id":"9","name":"Crypto"}]}`))
	}))
	defer srv.Close()

	lists, err := newWebClientFor(srv).ListWatchlists(context.Background(), testCreds())
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "9", lists[0].ID)
}

func TestWebClientListWatchlistsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newWebClientFor(srv).ListWatchlists(context.Background(), testCreds())
	require.Error(t, err)

	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr), "decode failures are not HTTP errors")
}

func TestWebClientRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ok, err := newWebClientFor(srv).Refresh(context.Background(), testCreds())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWebClientRefreshWithoutEndpoint(t *testing.T) {
	client := NewWebClient(TradingView, Endpoints{Probe: "http://unused.example"}, nil)

	ok, err := client.Refresh(context.Background(), testCreds())
	require.NoError(t, err)
	assert.False(t, ok, "no keepalive endpoint means the platform cannot refresh")
}

func TestWebClientContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newWebClientFor(srv).Probe(ctx, testCreds())
	require.Error(t, err)
}
