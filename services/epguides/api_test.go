package epguides

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/epguides-io/epguides-api/models"
	sv "github.com/epguides-io/epguides-api/services/common"
)

func testApi(url string) *Api {
	return &Api{
		url: url,
		cl:  http.DefaultClient,
		cb:  sv.NewBreaker("epguides-test"),
		now: func() time.Time { return testNow },
	}
}

func TestFetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/common/allshows.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(catalogFixture))
	}))
	defer server.Close()

	shows, err := testApi(server.URL).FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("fetch catalog failed: %v", err)
	}
	if len(shows) != 2 {
		t.Fatalf("expected 2 shows, got %d", len(shows))
	}
	if shows[0].EpguidesURL != server.URL+"/BreakingBad" {
		t.Errorf("unexpected epguides url %v", shows[0].EpguidesURL)
	}
}

func TestFetchEpisodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/BreakingBad", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h2><a href="https://www.imdb.com/title/tt0903747/">Breaking Bad</a></h2>
<a href="common/exportToCSV.asp?rage=18164">list output</a>`))
	})
	mux.HandleFunc("/common/exportToCSV.asp", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("rage") != "18164" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(rageEpisodesFixture))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	eps, err := testApi(server.URL).FetchEpisodes(context.Background(), "BreakingBad")
	if err != nil {
		t.Fatalf("fetch episodes failed: %v", err)
	}
	if len(eps) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(eps))
	}
	if eps[0].Title != "Pilot" {
		t.Errorf("unexpected first episode %+v", eps[0])
	}
}

func TestFetchShowNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := testApi(server.URL).FetchShow(context.Background(), "NoSuchShow")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchCatalogUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testApi(server.URL).FetchCatalog(context.Background())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestFetchShowWithoutExport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h2>Some Show</h2>`))
	}))
	defer server.Close()

	api := testApi(server.URL)

	shw, err := api.FetchShow(context.Background(), "someshow")
	if err != nil {
		t.Fatalf("fetch show failed: %v", err)
	}
	if shw.Title != "Some Show" {
		t.Errorf("unexpected title %v", shw.Title)
	}

	_, err = api.FetchEpisodes(context.Background(), "someshow")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound without an export link, got %v", err)
	}
}
