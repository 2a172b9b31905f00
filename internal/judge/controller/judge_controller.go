package controller

import (
	"context"
	"strconv"
	"time"

	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"
	"ojjudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// StatusReader serves cached status views.
type StatusReader interface {
	GetOrLoad(ctx context.Context, submissionID int64, load func(context.Context) (model.JudgeStatus, error)) (model.JudgeStatus, error)
}

// SubmissionReader loads the persisted submission behind a status miss.
type SubmissionReader interface {
	GetByID(ctx context.Context, id int64) (*model.Submission, error)
}

// ReportReader loads archived judge reports.
type ReportReader interface {
	Load(ctx context.Context, submissionID int64) (*model.JudgeReport, error)
}

// JudgeController handles judge status requests.
type JudgeController struct {
	status      StatusReader
	submissions SubmissionReader
	reports     ReportReader
}

// NewJudgeController creates a new controller. reports may be nil.
func NewJudgeController(status StatusReader, submissions SubmissionReader, reports ReportReader) *JudgeController {
	return &JudgeController{status: status, submissions: submissions, reports: reports}
}

// Register mounts the judge routes on r.
func (h *JudgeController) Register(r gin.IRouter) {
	group := r.Group("/api/v1/judge")
	group.GET("/submissions/:id", h.GetStatus)
	group.GET("/submissions/:id/report", h.GetReport)
}

// GetStatus returns status for one submission.
func (h *JudgeController) GetStatus(c *gin.Context) {
	submissionID, ok := parseSubmissionID(c)
	if !ok {
		return
	}
	load := func(ctx context.Context) (model.JudgeStatus, error) {
		sub, err := h.submissions.GetByID(ctx, submissionID)
		if err != nil {
			return model.JudgeStatus{}, err
		}
		return model.StatusFromSubmission(sub, time.Now().Unix()), nil
	}
	status, err := h.status.GetOrLoad(c.Request.Context(), submissionID, load)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// GetReport returns the archived per-case report of a submission.
func (h *JudgeController) GetReport(c *gin.Context) {
	submissionID, ok := parseSubmissionID(c)
	if !ok {
		return
	}
	if h.reports == nil {
		response.ErrorWithCode(c, appErr.NotFound, "report archive is disabled")
		return
	}
	report, err := h.reports.Load(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

func parseSubmissionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return 0, false
	}
	return id, true
}
