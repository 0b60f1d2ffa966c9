package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/extract"
	"github.com/conorfennell/studydeck/internal/ingest"
	"github.com/conorfennell/studydeck/internal/srs"
	"github.com/conorfennell/studydeck/internal/storage"
	"github.com/conorfennell/studydeck/internal/study"
	"github.com/conorfennell/studydeck/internal/sync"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *study.Service) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("storage.Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := study.NewService(db, srs.DefaultParams(), study.WithClock(func() time.Time { return fixedNow }))
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	pipeline := ingest.NewPipeline()
	syncer := &sync.Syncer{Service: svc, Pipeline: pipeline, ReposDir: t.TempDir()}
	return NewServer(svc, pipeline, syncer, opts), svc
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, field, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(content))
	} else {
		w.WriteField("note", "no file here")
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/pdf", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestIngest(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	t.Run("text document", func(t *testing.T) {
		rec := upload(t, s, "file", "notes.txt", "A finite automaton is a mathematical model of computation.")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, but got %d: %s", rec.Code, rec.Body.String())
		}
		res := decode[ingest.Result](t, rec)
		if res.Meta.DocumentName != "notes.txt" || res.Meta.Pages != 1 {
			t.Errorf("Unexpected meta: %+v", res.Meta)
		}
		if len(res.Cards) == 0 {
			t.Fatal("Expected at least one generated card")
		}
		if res.Cards[0].Source.DocumentName != "notes.txt" {
			t.Errorf("Expected card source notes.txt, but got %q", res.Cards[0].Source.DocumentName)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		rec := upload(t, s, "", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, but got %d", rec.Code)
		}
		if body := decode[map[string]string](t, rec); body["error"] != "No file" {
			t.Errorf("Expected error %q, but got %q", "No file", body["error"])
		}
	})

	t.Run("empty document", func(t *testing.T) {
		rec := upload(t, s, "file", "empty.txt", "   \n")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status 500, but got %d", rec.Code)
		}
		if body := decode[map[string]string](t, rec); body["error"] == "" {
			t.Error("Expected an error message")
		}
	})

	t.Run("unreadable pdf", func(t *testing.T) {
		rec := upload(t, s, "file", "broken.pdf", "this is not a pdf")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status 500, but got %d", rec.Code)
		}
	})
}

func TestIngestTooLarge(t *testing.T) {
	s, _ := newTestServer(t, Options{MaxUploadBytes: 16})
	rec := upload(t, s, "file", "notes.txt", "A finite automaton is a mathematical model of computation.")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, but got %d", rec.Code)
	}
}

func TestCardLifecycle(t *testing.T) {
	s, svc := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/cards", `{"front":"What is a DFA?","back":"A deterministic finite automaton","topic":"Automata"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, but got %d: %s", rec.Code, rec.Body.String())
	}
	card := decode[domain.Card](t, rec)

	due := decode[[]domain.Card](t, do(t, s, http.MethodGet, "/cards/due", ""))
	if len(due) != 1 || due[0].ID != card.ID {
		t.Fatalf("Expected the new card to be due, got %+v", due)
	}

	rec = do(t, s, http.MethodPost, "/cards/"+card.ID+"/review", `{"correct":true,"confidence":3,"timeSpent":12}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, but got %d: %s", rec.Code, rec.Body.String())
	}
	reviewed := decode[domain.Card](t, rec)
	if reviewed.ReviewCount != 1 || reviewed.CorrectCount != 1 || reviewed.Mastery != 100 {
		t.Errorf("Unexpected counters after review: %+v", reviewed)
	}
	if !reviewed.NextReview.After(fixedNow) {
		t.Errorf("Expected next review after %v, but got %v", fixedNow, reviewed.NextReview)
	}

	due = decode[[]domain.Card](t, do(t, s, http.MethodGet, "/cards/due", ""))
	if len(due) != 0 {
		t.Errorf("Expected no due cards after a correct review, got %d", len(due))
	}

	rec = do(t, s, http.MethodPatch, "/cards/"+card.ID, `{"notes":"chapter 2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, but got %d: %s", rec.Code, rec.Body.String())
	}
	if got := svc.Cards()[0].Notes; got != "chapter 2" {
		t.Errorf("Expected notes to be updated, got %q", got)
	}

	progress := decode[map[string]any](t, do(t, s, http.MethodGet, "/progress", ""))
	if progress["mastered"] != float64(1) {
		t.Errorf("Expected one mastered card, got %v", progress["mastered"])
	}
	activity := decode[[]map[string]any](t, do(t, s, http.MethodGet, "/activity", ""))
	if len(activity) != 1 || activity[0]["date"] != "2024-03-10" {
		t.Errorf("Unexpected activity: %v", activity)
	}
}

func TestReviewErrors(t *testing.T) {
	s, svc := newTestServer(t, Options{})
	card, err := svc.AddCard(context.Background(), study.CardInput{Front: "Q", Back: "A"})
	if err != nil {
		t.Fatalf("AddCard() returned an unexpected error: %v", err)
	}

	testCases := []struct {
		name     string
		path     string
		body     string
		expected int
	}{
		{"unknown card", "/cards/missing/review", `{"correct":true,"confidence":2}`, http.StatusNotFound},
		{"confidence too high", "/cards/" + card.ID + "/review", `{"correct":true,"confidence":5}`, http.StatusBadRequest},
		{"confidence missing", "/cards/" + card.ID + "/review", `{"correct":false}`, http.StatusBadRequest},
		{"malformed body", "/cards/" + card.ID + "/review", `{"correct":`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.expected {
				t.Errorf("Expected status %d, but got %d: %s", tc.expected, rec.Code, rec.Body.String())
			}
		})
	}

	if got := svc.Cards()[0].ReviewCount; got != 0 {
		t.Errorf("Expected rejected reviews to leave the card untouched, got %d reviews", got)
	}
}

func TestAcceptAndSessions(t *testing.T) {
	s, svc := newTestServer(t, Options{})

	body := `{"cards":[{"id":"g1","front":"What is a stack?","back":"A LIFO structure","topics":["Definitions"],"tags":["stack"],"confidence":0.7}]}`
	rec := do(t, s, http.MethodPost, "/cards/accept", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, but got %d: %s", rec.Code, rec.Body.String())
	}
	if cards := svc.Cards(); len(cards) != 1 || cards[0].Topic != "Definitions" {
		t.Errorf("Expected one accepted Definitions card, got %+v", cards)
	}

	rec = do(t, s, http.MethodPost, "/sessions", `{"cardsReviewed":4,"correctAnswers":3,"duration":300}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, but got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodPost, "/sessions", `{"cardsReviewed":1,"correctAnswers":3}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for more correct answers than reviews, got %d", rec.Code)
	}

	stats := decode[map[string]any](t, do(t, s, http.MethodGet, "/analytics", ""))
	if stats["currentStreak"] != float64(1) {
		t.Errorf("Expected a streak of 1, got %v", stats["currentStreak"])
	}
}

func TestSync(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "deck.md"), []byte("Q: One?\nA: Two\n---\nQ: Three?\nA: Four\n"), 0o644); err != nil {
		t.Fatalf("failed to write deck: %v", err)
	}
	s, _ := newTestServer(t, Options{Sources: []string{dir}})

	rec := do(t, s, http.MethodPost, "/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, but got %d", rec.Code)
	}
	report := decode[map[string]any](t, rec)
	if report["added"] != float64(2) {
		t.Errorf("Expected 2 added cards, got %v", report["added"])
	}
}

type gatedExtractor struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (extract.Document, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	return extract.Plain{}.Extract(ctx, r, size)
}

func TestSyncConflict(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("A stack is a collection with last-in first-out access."), 0o644); err != nil {
		t.Fatalf("failed to write notes: %v", err)
	}
	s, _ := newTestServer(t, Options{Sources: []string{dir}})
	gate := &gatedExtractor{started: make(chan struct{}, 1), release: make(chan struct{})}
	s.syncer.Pipeline.Extractor = func(string) extract.Extractor { return gate }

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.syncer.Run(context.Background(), []string{dir})
	}()
	<-gate.started

	rec := do(t, s, http.MethodPost, "/sync", "")
	close(gate.release)
	<-done

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409 while a sync is running, but got %d", rec.Code)
	}
}

func TestHealthzAndCORS(t *testing.T) {
	s, _ := newTestServer(t, Options{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, but got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}
}
