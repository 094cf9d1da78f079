package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codegrade/internal/api/handler"
	"codegrade/internal/app/service"
	"codegrade/internal/common"
	"codegrade/internal/domain/model"
	"codegrade/internal/domain/repository"

	"github.com/go-chi/chi/v5"
)

type fakeSubmissionRepo struct {
	subs    map[string]*model.Submission
	applied map[string]model.ResultUpdate
}

func newFakeSubmissionRepo(subs ...*model.Submission) *fakeSubmissionRepo {
	f := &fakeSubmissionRepo{
		subs:    make(map[string]*model.Submission),
		applied: make(map[string]model.ResultUpdate),
	}
	for _, s := range subs {
		f.subs[s.ID] = s
	}
	return f
}

func (f *fakeSubmissionRepo) Create(_ context.Context, sub *model.Submission) error {
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubmissionRepo) List(context.Context, repository.ListFilter) ([]model.Submission, int, error) {
	return nil, 0, nil
}

func (f *fakeSubmissionRepo) ApplyResult(_ context.Context, id string, upd model.ResultUpdate) (bool, error) {
	sub, ok := f.subs[id]
	if !ok || sub.Finalized {
		return false, nil
	}
	sub.Status = upd.Status
	sub.Score = upd.Score
	sub.FailTags = upd.FailTags
	sub.Feedback = upd.Feedback
	sub.Metrics = upd.Metrics
	f.applied[id] = upd
	return true, nil
}

func (f *fakeSubmissionRepo) Finalize(_ context.Context, id string, note *string) (bool, error) {
	sub, ok := f.subs[id]
	if !ok || sub.Finalized {
		return false, nil
	}
	sub.Finalized = true
	sub.Status = model.StatusFinalized
	sub.FinalizeNote = note
	return true, nil
}

func (f *fakeSubmissionRepo) FindFinalizedByOwner(_ context.Context, userID string) (*model.Submission, error) {
	for _, sub := range f.subs {
		if sub.UserID == userID && sub.Finalized {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

const testResultToken = "test-token"

func newInternalServer(repo *fakeSubmissionRepo) *httptest.Server {
	r := chi.NewRouter()
	h := handler.NewInternalHandler(service.NewResultService(repo), testResultToken)
	r.Route("/api/internal", h.RegisterRoutes)
	return httptest.NewServer(r)
}

func postResult(t *testing.T, srv *httptest.Server, id, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/internal/submissions/"+id+"/result", strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Result-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post result: %v", err)
	}
	return resp
}

func TestPostResult_RejectsBadToken(t *testing.T) {
	repo := newFakeSubmissionRepo(&model.Submission{ID: "s1", UserID: "u1", Status: model.StatusQueued})
	srv := newInternalServer(repo)
	defer srv.Close()

	for _, token := range []string{"", "wrong"} {
		resp := postResult(t, srv, "s1", token, `{"status":"COMPLETED","score":100}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, resp.StatusCode)
		}
	}
	if len(repo.applied) != 0 {
		t.Error("unauthorized report must not be applied")
	}
}

func TestPostResult_UnknownSubmissionIs404(t *testing.T) {
	srv := newInternalServer(newFakeSubmissionRepo())
	defer srv.Close()

	resp := postResult(t, srv, "missing", testResultToken, `{"status":"COMPLETED"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPostResult_InvalidBodyAndStatusAre400(t *testing.T) {
	repo := newFakeSubmissionRepo(&model.Submission{ID: "s1", UserID: "u1", Status: model.StatusQueued})
	srv := newInternalServer(repo)
	defer srv.Close()

	for _, body := range []string{`{not json`, `{"status":"QUEUED"}`, `{"status":""}`} {
		resp := postResult(t, srv, "s1", testResultToken, body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestPostResult_AppliesReportAndAcks(t *testing.T) {
	repo := newFakeSubmissionRepo(&model.Submission{ID: "s1", UserID: "u1", Status: model.StatusQueued})
	srv := newInternalServer(repo)
	defer srv.Close()

	resp := postResult(t, srv, "s1", testResultToken,
		`{"status":"SUCCESSED","score":77,"fail_tags":[],"feedback":[{"case":"c1","message":"ok"}],"metrics":{"timeMs":420,"memoryMB":16}}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var ack handler.ResultAckResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.OK || ack.SubmissionID != "s1" || ack.Status != string(model.StatusCompleted) {
		t.Errorf("ack = %+v", ack)
	}

	upd, ok := repo.applied["s1"]
	if !ok {
		t.Fatal("report was not applied")
	}
	if upd.Status != model.StatusCompleted || upd.Score != 77 || upd.Metrics.TimeMs != 420 {
		t.Errorf("applied update = %+v", upd)
	}
}

func TestPostResult_FinalizedRecordKeepsStatus(t *testing.T) {
	repo := newFakeSubmissionRepo(&model.Submission{
		ID: "s1", UserID: "u1", Status: model.StatusFinalized, Finalized: true,
	})
	srv := newInternalServer(repo)
	defer srv.Close()

	resp := postResult(t, srv, "s1", testResultToken, `{"status":"FAILED"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var ack handler.ResultAckResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != string(model.StatusFinalized) {
		t.Errorf("ack status = %s, want FINALIZED", ack.Status)
	}
	if len(repo.applied) != 0 {
		t.Error("late report must not overwrite a finalized record")
	}
}
