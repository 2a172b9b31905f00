package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"ojjudge/internal/common/http/middleware"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type mapStatus map[int64]model.JudgeStatus

func (m mapStatus) GetOrLoad(ctx context.Context, id int64, load func(context.Context) (model.JudgeStatus, error)) (model.JudgeStatus, error) {
	if s, ok := m[id]; ok {
		return s, nil
	}
	return load(ctx)
}

type mapSubmissions map[int64]*model.Submission

func (m mapSubmissions) GetByID(_ context.Context, id int64) (*model.Submission, error) {
	if s, ok := m[id]; ok {
		return s, nil
	}
	return nil, appErr.Newf(appErr.SubmissionNotFound, "submission %d not found", id)
}

type mapReports map[int64]*model.JudgeReport

func (m mapReports) Load(_ context.Context, id int64) (*model.JudgeReport, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, appErr.New(appErr.NotFound).WithMessage("judge report not found")
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRouter(h *JudgeController) *gin.Engine {
	r := gin.New()
	r.Use(middleware.TraceContext())
	h.Register(r)
	return r
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestGetStatus(t *testing.T) {
	t.Parallel()
	h := NewJudgeController(
		mapStatus{1: {SubmissionID: 1, Status: model.StatusAccepted, Result: "所有测试用例通过"}},
		mapSubmissions{2: {ID: 2, Status: model.StatusWrongAnswer, Result: "答案错误", IsOverdue: true}},
		nil,
	)
	r := newRouter(h)

	rec, body := get(t, r, "/api/v1/judge/submissions/1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, body.TraceID)
	var status model.JudgeStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	require.Equal(t, model.StatusAccepted, status.Status)

	rec, body = get(t, r, "/api/v1/judge/submissions/2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body.Data, &status))
	require.Equal(t, model.StatusWrongAnswer, status.Status)
	require.True(t, status.IsOverdue)
	require.NotZero(t, status.UpdatedAt)

	rec, body = get(t, r, "/api/v1/judge/submissions/3")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, int(appErr.SubmissionNotFound), body.Code)

	rec, _ = get(t, r, "/api/v1/judge/submissions/abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = get(t, r, "/api/v1/judge/submissions/-4")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReport(t *testing.T) {
	t.Parallel()
	report := &model.JudgeReport{SubmissionID: 5, Status: model.StatusPartiallyCorrect, Cases: []model.CaseReport{{Index: 1, Passed: true}}}
	r := newRouter(NewJudgeController(mapStatus{}, mapSubmissions{}, mapReports{5: report}))

	rec, body := get(t, r, "/api/v1/judge/submissions/5/report")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.JudgeReport
	require.NoError(t, json.Unmarshal(body.Data, &got))
	require.Equal(t, *report, got)

	rec, _ = get(t, r, "/api/v1/judge/submissions/6/report")
	require.Equal(t, http.StatusNotFound, rec.Code)

	disabled := newRouter(NewJudgeController(mapStatus{}, mapSubmissions{}, nil))
	rec, body = get(t, disabled, "/api/v1/judge/submissions/5/report")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "report archive is disabled", body.Message)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name string
		deps map[string]Pinger
		code int
	}{
		{"all healthy", map[string]Pinger{"database": ok, "cache": ok, "queue": ok}, http.StatusOK},
		{"queue down", map[string]Pinger{"database": ok, "queue": down}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			NewHealthController(tt.deps, 0).Register(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tt.code, rec.Code)
			var body struct {
				Healthy bool              `json:"healthy"`
				Checks  map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.code == http.StatusOK, body.Healthy)
			require.Len(t, body.Checks, len(tt.deps))
		})
	}
}
