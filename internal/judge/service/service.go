// Package service consumes judge messages and drives a submission to its terminal status.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ojjudge/internal/common/mq"
	"ojjudge/internal/judge/judger"
	"ojjudge/internal/judge/model"
	"ojjudge/internal/judge/repository"
	appErr "ojjudge/pkg/errors"
	"ojjudge/pkg/utils/contextkey"
	"ojjudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix      = "judge:lock:"
	defaultLockTTL     = 10 * time.Minute
	defaultLockPoll    = time.Second
	problemNotFoundMsg = "Problem not found"
)

// Dispatcher grades a submission by problem type.
type Dispatcher interface {
	Judge(ctx context.Context, typ model.ProblemType, sub *model.Submission, p *model.Problem) (judger.Outcome, error)
}

// StatusStore caches status views.
type StatusStore interface {
	Save(ctx context.Context, status model.JudgeStatus) error
}

// ReportStore archives per-case reports.
type ReportStore interface {
	Save(ctx context.Context, report model.JudgeReport) error
}

// Locker guards a submission against concurrent judging of redelivered messages.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Service handles judge messages.
type Service struct {
	submissions   repository.SubmissionRepository
	problems      repository.ProblemRepository
	overdue       *OverdueChecker
	dispatcher    Dispatcher
	status        StatusStore
	events        repository.StatusEventPublisher
	reports       ReportStore
	locker        Locker
	lockTTL       time.Duration
	lockPoll      time.Duration
	judgeTimeout  time.Duration
	statusTimeout time.Duration
	now           func() time.Time
}

// Config holds service dependencies and settings. Status, Events, Reports and
// Locker are optional. LockPollInterval is how often a held lock is retried.
type Config struct {
	Submissions      repository.SubmissionRepository
	Problems         repository.ProblemRepository
	Assignments      repository.AssignmentRepository
	Dispatcher       Dispatcher
	Status           StatusStore
	Events           repository.StatusEventPublisher
	Reports          ReportStore
	Locker           Locker
	LockTTL          time.Duration
	LockPollInterval time.Duration
	JudgeTimeout     time.Duration
	StatusTimeout    time.Duration
	Now              func() time.Time
}

// NewService creates a judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Submissions == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	lockPoll := cfg.LockPollInterval
	if lockPoll <= 0 {
		lockPoll = defaultLockPoll
	}
	s := &Service{
		submissions:   cfg.Submissions,
		problems:      cfg.Problems,
		dispatcher:    cfg.Dispatcher,
		status:        cfg.Status,
		events:        cfg.Events,
		reports:       cfg.Reports,
		locker:        cfg.Locker,
		lockTTL:       lockTTL,
		lockPoll:      lockPoll,
		judgeTimeout:  cfg.JudgeTimeout,
		statusTimeout: cfg.StatusTimeout,
		now:           now,
	}
	if cfg.Assignments != nil {
		s.overdue = NewOverdueChecker(cfg.Assignments)
	}
	return s, nil
}

// HandleMessage judges the submission named by msg. It returns nil once the
// message is resolved; an error asks the queue to redeliver.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return nil
	}
	traceID, ok := msg.GetHeader(repository.HeaderTraceID)
	if !ok || traceID == "" {
		traceID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, contextkey.TraceID, traceID)

	var payload model.JudgeMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil || payload.SubmissionID <= 0 {
		logger.Error(ctx, "discard malformed judge message", zap.String("message_id", msg.ID), zap.ByteString("body", msg.Body), zap.Error(err))
		return nil
	}
	ctx = context.WithValue(ctx, contextkey.SubmissionID, payload.SubmissionID)

	sub, err := s.submissions.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		if appErr.Is(err, appErr.SubmissionNotFound) {
			logger.Warn(ctx, "submission not found, dropping message")
			return nil
		}
		return err
	}
	ctx = context.WithValue(ctx, contextkey.UserID, sub.UserID)

	finished, err := s.acquire(ctx, sub)
	if err != nil {
		return err
	}
	if finished {
		logger.Info(ctx, "submission finished by another worker")
		return nil
	}
	defer s.unlock(ctx, sub.ID)

	if err := s.submissions.MarkJudging(ctx, sub.ID); err != nil {
		return err
	}
	s.saveStatus(ctx, model.JudgeStatus{
		SubmissionID: sub.ID,
		Status:       model.StatusJudging,
		UpdatedAt:    s.now().Unix(),
	})
	logger.Info(ctx, "judging started", zap.Int64("problem_id", sub.ProblemID), zap.String("language", sub.Language))

	result, err := s.judge(ctx, sub)
	if err != nil {
		logger.Warn(ctx, "judging interrupted", zap.Error(err))
		return err
	}
	return s.finish(ctx, sub, result)
}

// judge produces the terminal result. A non-nil error means the result must not be persisted.
func (s *Service) judge(ctx context.Context, sub *model.Submission) (model.JudgeResult, error) {
	problem, err := s.problems.GetByID(ctx, sub.ProblemID)
	if err != nil {
		if appErr.Is(err, appErr.ProblemNotFound) {
			return failed(problemNotFoundMsg), nil
		}
		logger.Error(ctx, "load problem failed", zap.Error(err))
		return failed(serviceErrorMessage(err)), nil
	}

	overdue := s.checkOverdue(ctx, sub)

	typ, ok := model.ParseProblemType(problem.Type)
	if !ok {
		err := appErr.Newf(appErr.ProblemTypeInvalid, "不支持的题目类型: %s", problem.Type)
		logger.Warn(ctx, "unsupported problem type", zap.Int64("problem_id", problem.ID), zap.String("type", problem.Type))
		res := failed(err.Error())
		res.IsOverdue = overdue
		return res, nil
	}

	outcome, err := s.dispatch(ctx, typ, sub, problem)
	if err != nil {
		if ctx.Err() != nil {
			return model.JudgeResult{}, ctx.Err()
		}
		logger.Error(ctx, "judge failed", zap.String("type", typ.String()), zap.Error(err))
		res := failed(serviceErrorMessage(err))
		res.IsOverdue = overdue
		return res, nil
	}
	return model.JudgeResult{
		Status:        outcome.Status,
		Result:        outcome.Result,
		ExecutionTime: outcome.ExecutionTime,
		IsOverdue:     overdue,
		Cases:         outcome.Cases,
	}, nil
}

func (s *Service) dispatch(ctx context.Context, typ model.ProblemType, sub *model.Submission, p *model.Problem) (outcome judger.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "judge panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = appErr.Newf(appErr.JudgeSystemError, "%v", r)
		}
	}()
	judgeCtx := ctx
	if s.judgeTimeout > 0 {
		var cancel context.CancelFunc
		judgeCtx, cancel = context.WithTimeout(ctx, s.judgeTimeout)
		defer cancel()
	}
	return s.dispatcher.Judge(judgeCtx, typ, sub, p)
}

func (s *Service) checkOverdue(ctx context.Context, sub *model.Submission) bool {
	if s.overdue == nil {
		return false
	}
	overdue, err := s.overdue.Check(ctx, sub, s.now().UTC())
	if err != nil {
		logger.Warn(ctx, "overdue check failed", zap.Error(err))
		return false
	}
	return overdue
}

// acquire takes the submission lock, waiting while another worker holds it. The wait ends
// when the lock is taken, either because the holder released it or because a crashed
// holder's TTL ran out, or when the holder is seen moving the submission to a terminal
// status, reported as finished. Cancellation returns the context error so the message
// stays unacknowledged.
func (s *Service) acquire(ctx context.Context, sub *model.Submission) (finished bool, err error) {
	locked, err := s.lock(ctx, sub.ID)
	if err != nil || locked {
		return false, err
	}
	logger.Info(ctx, "submission is being judged by another worker, waiting", zap.Duration("poll", s.lockPoll))

	// A submission that was already terminal counts as finished only after it is seen in
	// progress, so a rejudge is not mistaken for the previous verdict.
	inProgress := !sub.Status.IsTerminal()
	ticker := time.NewTicker(s.lockPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}

		current, err := s.submissions.GetByID(ctx, sub.ID)
		switch {
		case appErr.Is(err, appErr.SubmissionNotFound):
			return true, nil
		case err != nil:
			logger.Warn(ctx, "reload submission while waiting for lock failed", zap.Error(err))
		case current.Status.IsTerminal() && inProgress:
			return true, nil
		case !current.Status.IsTerminal():
			inProgress = true
		}

		locked, err := s.lock(ctx, sub.ID)
		if err != nil || locked {
			return false, err
		}
	}
}

func (s *Service) lock(ctx context.Context, id int64) (bool, error) {
	if s.locker == nil {
		return true, nil
	}
	ok, err := s.locker.TryLock(ctx, lockKey(id), s.lockTTL)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.CacheError, "lock submission %d", id)
	}
	return ok, nil
}

func (s *Service) unlock(ctx context.Context, id int64) {
	if s.locker == nil {
		return
	}
	if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey(id)); err != nil {
		logger.Warn(ctx, "unlock submission failed", zap.Error(err))
	}
}

func lockKey(id int64) string {
	return lockKeyPrefix + strconv.FormatInt(id, 10)
}

func failed(message string) model.JudgeResult {
	return model.JudgeResult{Status: model.StatusError, Result: message}
}

func serviceErrorMessage(err error) string {
	return "判题服务错误: " + err.Error()
}
