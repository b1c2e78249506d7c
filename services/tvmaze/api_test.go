package tvmaze

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"

	"github.com/epguides-io/epguides-api/models"
	sv "github.com/epguides-io/epguides-api/services/common"
)

func testApi(url string) *Api {
	return &Api{
		url: url,
		cl:  http.DefaultClient,
		cb:  sv.NewBreaker("tvmaze-test"),
	}
}

func TestSingleSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/singlesearch/shows" || r.URL.Query().Get("q") != "Severance" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id":44933,"name":"Severance","status":"Running","externals":{"imdb":"tt11280740"},"image":{"medium":"https://img/m.jpg","original":"https://img/o.jpg"}}`))
	}))
	defer server.Close()

	resp, err := testApi(server.URL).SingleSearch(context.Background(), "Severance")
	if err != nil {
		t.Fatalf("single search failed: %v", err)
	}
	if resp == nil || resp.ID != 44933 || resp.Status != "Running" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Externals.IMDB != "tt11280740" || resp.Image.Original != "https://img/o.jpg" {
		t.Errorf("unexpected externals %+v", resp)
	}
}

func TestSingleSearchMissIsSoft(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	resp, err := testApi(server.URL).SingleSearch(context.Background(), "no such show")
	if err != nil {
		t.Fatalf("miss must not be an error, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response on miss, got %+v", resp)
	}
}

func TestLookupByIMDB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lookup/shows" || r.URL.Query().Get("imdb") != "tt0903747" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id":169,"name":"Breaking Bad","status":"Ended"}`))
	}))
	defer server.Close()

	resp, err := testApi(server.URL).LookupByIMDB(context.Background(), "tt0903747")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if resp == nil || resp.Status != StatusEnded {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEpisodesStripsTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shows/44933/episodes" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"season":1,"number":1,"name":"Good News About Hell","airdate":"2022-02-18","runtime":52,"summary":"<p>Mark welcomes a <b>new hire</b>.</p>"}]`))
	}))
	defer server.Close()

	eps, err := testApi(server.URL).Episodes(context.Background(), 44933)
	if err != nil {
		t.Fatalf("episodes failed: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(eps))
	}
	if eps[0].Summary != "Mark welcomes a new hire." {
		t.Errorf("expected tags stripped, got %q", eps[0].Summary)
	}
}

func TestServerErrorIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testApi(server.URL).SingleSearch(context.Background(), "anything")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
