package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/infra/memory"
	"github.com/jasa1aw/eduBack/internal/notify"
)

func TestAttemptLifecycleOverHTTP(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	var attempt domain.Attempt
	doJSON(t, server, "POST", "/api/attempts", map[string]any{
		"userId": "u1", "testId": "test-1", "mode": "PRACTICE",
	}, http.StatusCreated, &attempt)

	var progress struct {
		HasNext bool `json:"hasNext"`
	}
	doJSON(t, server, "POST", "/api/attempts/"+attempt.ID+"/progress", map[string]any{
		"userId": "u1",
		"answer": map[string]any{"questionId": "q1", "selectedAnswers": []string{"Paris", "Vienna"}},
	}, http.StatusOK, &progress)
	if !progress.HasNext {
		t.Fatal("expected another question after the first answer")
	}

	var view app.ProgressView
	doJSON(t, server, "GET", "/api/attempts/"+attempt.ID+"/progress?userId=u1", nil, http.StatusOK, &view)
	if view.Remaining != 1 || view.NextQuestion == nil || view.NextQuestion.ID != "q2" {
		t.Fatalf("unexpected progress view %+v", view)
	}

	var result domain.Result
	doJSON(t, server, "POST", "/api/attempts/"+attempt.ID+"/submit", map[string]any{
		"userId": "u1",
		"answers": []map[string]any{
			{"questionId": "q2", "selectedAnswers": []string{"true"}},
		},
	}, http.StatusOK, &result)
	if result.Score != 100 {
		t.Fatalf("score = %d, want 100", result.Score)
	}

	var rv app.ResultView
	doJSON(t, server, "GET", "/api/attempts/"+attempt.ID+"/result?userId=u1", nil, http.StatusOK, &rv)
	if rv.Status != domain.AttemptCompleted || len(rv.Questions) != 2 {
		t.Fatalf("unexpected result view %+v", rv)
	}

	var snap app.Snapshot
	doJSON(t, server, "GET", "/api/attempts/"+attempt.ID+"/export?userId=teacher-1", nil, http.StatusOK, &snap)
	if snap.Result == nil || len(snap.Answers) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	// Unknown test: 404.
	doJSON(t, server, "POST", "/api/attempts", map[string]any{
		"userId": "u1", "testId": "missing", "mode": "PRACTICE",
	}, http.StatusNotFound, nil)

	// Unknown mode: 400.
	doJSON(t, server, "POST", "/api/attempts", map[string]any{
		"userId": "u1", "testId": "test-1", "mode": "SPEEDRUN",
	}, http.StatusBadRequest, nil)

	var attempt domain.Attempt
	doJSON(t, server, "POST", "/api/attempts", map[string]any{
		"userId": "u1", "testId": "test-1", "mode": "PRACTICE",
	}, http.StatusCreated, &attempt)

	// Foreign attempt: 403.
	doJSON(t, server, "POST", "/api/attempts/"+attempt.ID+"/submit", map[string]any{
		"userId": "u2",
	}, http.StatusForbidden, nil)

	// Double submit: 409.
	doJSON(t, server, "POST", "/api/attempts/"+attempt.ID+"/submit", map[string]any{"userId": "u1"}, http.StatusOK, nil)
	doJSON(t, server, "POST", "/api/attempts/"+attempt.ID+"/submit", map[string]any{"userId": "u1"}, http.StatusConflict, nil)
}

func TestCreateCompetitionOverHTTP(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	var created struct {
		Competition domain.Competition `json:"competition"`
		Teams       []domain.Team      `json:"teams"`
	}
	doJSON(t, server, "POST", "/api/competitions", map[string]any{
		"creatorId": "teacher-1", "testId": "test-1", "maxTeams": 2,
	}, http.StatusCreated, &created)
	if len(created.Teams) != 2 || created.Competition.Code == "" {
		t.Fatalf("unexpected create response %+v", created)
	}

	var snapshot app.CompetitionSnapshot
	doJSON(t, server, "GET", "/api/competitions/"+created.Competition.Code, nil, http.StatusOK, &snapshot)
	if snapshot.Competition.ID != created.Competition.ID {
		t.Fatalf("snapshot competition %s, want %s", snapshot.Competition.ID, created.Competition.ID)
	}
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	store.SeedTestContent(wsSampleContent())
	attempts := app.NewAttemptService(store, notify.LogNotifier{})
	competitions := app.NewCompetitionService(store, app.NewStoreContentSource(store), memory.NewRoomRegistry())

	mux := http.NewServeMux()
	NewAPIHandler(attempts, competitions).Register(mux)
	return httptest.NewServer(mux)
}

func doJSON(t *testing.T, server *httptest.Server, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s status = %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}
