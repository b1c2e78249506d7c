package nlq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"github.com/epguides-io/epguides-api/models"
)

func testEpisodes(t *testing.T) []*models.Episode {
	t.Helper()
	var out []*models.Episode
	for i, title := range []string{"Pilot", "Cat's in the Bag...", "Felina"} {
		e, err := models.NewEpisode(1, i+1, title, models.NewDate(2008, time.January, 20+i))
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, e)
	}
	out[2].Summary = strings.Repeat("Walt faces the consequences. ", 10)
	return out
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Temperature != 0.1 || req.MaxTokens != 100 {
			t.Errorf("unexpected sampling parameters %+v", req)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "SEASON STRUCTURE") {
			t.Errorf("unexpected prompt %+v", req.Messages)
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
		_, _ = w.Write(body)
	}))
}

func testApi(url string) *Api {
	return &Api{
		url:   url,
		key:   "secret",
		model: "test-model",
		cl:    http.DefaultClient,
	}
}

func TestFilterEpisodes(t *testing.T) {
	server := completionServer(t, " [0, 2] ")
	defer server.Close()

	eps := testEpisodes(t)
	filtered, err := testApi(server.URL).FilterEpisodes(context.Background(), "first and last", eps)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(filtered) != 2 || filtered[0].Title != "Pilot" || filtered[1].Title != "Felina" {
		t.Fatalf("unexpected result %+v", filtered)
	}
}

func TestFilterEpisodesIgnoresOutOfRangeIndices(t *testing.T) {
	server := completionServer(t, "[1, 99, -3]")
	defer server.Close()

	filtered, err := testApi(server.URL).FilterEpisodes(context.Background(), "anything", testEpisodes(t))
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Title != "Cat's in the Bag..." {
		t.Fatalf("unexpected result %+v", filtered)
	}
}

func TestFilterEpisodesBadContent(t *testing.T) {
	server := completionServer(t, "these episodes look great")
	defer server.Close()

	if _, err := testApi(server.URL).FilterEpisodes(context.Background(), "anything", testEpisodes(t)); err == nil {
		t.Fatal("expected an error for a non-array completion")
	}
}

func TestFilterEpisodesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := testApi(server.URL).FilterEpisodes(context.Background(), "anything", testEpisodes(t)); err == nil {
		t.Fatal("expected an error for a failing endpoint")
	}
}

func TestBuildPromptTruncatesOnRuneBoundary(t *testing.T) {
	e, err := models.NewEpisode(1, 1, "Pilot", models.NewDate(2008, time.January, 20))
	if err != nil {
		t.Fatal(err)
	}
	e.Summary = strings.Repeat("北", 200)

	prompt := buildPrompt("anything", []*models.Episode{e})
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains invalid utf-8")
	}
	if !strings.Contains(prompt, "北...") {
		t.Error("expected summary truncated after a whole rune")
	}
}

func TestBuildPromptTruncatesSummaries(t *testing.T) {
	prompt := buildPrompt("plot about consequences", testEpisodes(t))
	if !strings.Contains(prompt, `"plot"`) {
		t.Error("expected plot field in prompt")
	}
	if !strings.Contains(prompt, "...") {
		t.Error("expected long summaries truncated")
	}
	if !strings.Contains(prompt, "S1: eps 0-2") {
		t.Error("expected season structure line")
	}
}
