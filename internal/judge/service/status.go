package service

import (
	"context"

	"ojjudge/internal/judge/model"
	"ojjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// finish persists the terminal result, then fans it out to the status cache,
// the event topic and the report archive. Only the SQL write is fatal.
func (s *Service) finish(ctx context.Context, sub *model.Submission, res model.JudgeResult) error {
	if err := s.submissions.SaveResult(ctx, sub.ID, res); err != nil {
		logger.Error(ctx, "save judge result failed", zap.Error(err))
		return err
	}
	finishedAt := s.now().Unix()
	logger.Info(ctx, "judging finished",
		zap.String("status", string(res.Status)),
		zap.Float64("execution_time", res.ExecutionTime),
		zap.Bool("is_overdue", res.IsOverdue),
	)

	s.saveStatus(ctx, model.JudgeStatus{
		SubmissionID:  sub.ID,
		Status:        res.Status,
		Result:        res.Result,
		ExecutionTime: res.ExecutionTime,
		IsOverdue:     res.IsOverdue,
		Cases:         res.Cases,
		UpdatedAt:     finishedAt,
	})

	sideCtx, cancel := s.withStatusTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if s.events != nil {
		err := s.events.PublishFinalStatus(sideCtx, model.StatusEvent{
			SubmissionID:  sub.ID,
			UserID:        sub.UserID,
			ProblemID:     sub.ProblemID,
			Status:        res.Status,
			ExecutionTime: res.ExecutionTime,
			IsOverdue:     res.IsOverdue,
			FinishedAt:    finishedAt,
		})
		if err != nil {
			logger.Warn(ctx, "publish final status failed", zap.Error(err))
		}
	}

	if s.reports != nil {
		err := s.reports.Save(sideCtx, model.JudgeReport{
			SubmissionID:  sub.ID,
			UserID:        sub.UserID,
			ProblemID:     sub.ProblemID,
			Language:      sub.Language,
			Status:        res.Status,
			Result:        res.Result,
			ExecutionTime: res.ExecutionTime,
			IsOverdue:     res.IsOverdue,
			Cases:         res.Cases,
			JudgedAt:      finishedAt,
		})
		if err != nil {
			logger.Warn(ctx, "archive judge report failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) saveStatus(ctx context.Context, status model.JudgeStatus) {
	if s.status == nil {
		return
	}
	ctxStatus, cancel := s.withStatusTimeout(ctx)
	defer cancel()
	if err := s.status.Save(ctxStatus, status); err != nil {
		logger.Warn(ctx, "update status cache failed", zap.String("status", string(status.Status)), zap.Error(err))
	}
}

func (s *Service) withStatusTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.statusTimeout > 0 {
		return context.WithTimeout(ctx, s.statusTimeout)
	}
	return ctx, func() {}
}
