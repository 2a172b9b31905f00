package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"ojjudge/internal/common/mq"
	"ojjudge/internal/judge/model"
	appErr "ojjudge/pkg/errors"
	"ojjudge/pkg/utils/contextkey"
)

// Headers set on every status event.
const (
	HeaderStatus  = "status"
	HeaderUserID  = "user_id"
	HeaderTraceID = "trace_id"
)

// StatusEventPublisher announces terminal verdicts to downstream consumers
// (scoreboards, assignment progress, notifications).
type StatusEventPublisher interface {
	PublishFinalStatus(ctx context.Context, event model.StatusEvent) error
}

// MQStatusEventPublisher writes status events to one queue topic, keyed by
// submission id so every event of a submission lands on the same partition.
type MQStatusEventPublisher struct {
	publisher mq.Publisher
	topic     string
}

func NewMQStatusEventPublisher(publisher mq.Publisher, topic string) *MQStatusEventPublisher {
	return &MQStatusEventPublisher{publisher: publisher, topic: topic}
}

func (p *MQStatusEventPublisher) PublishFinalStatus(ctx context.Context, event model.StatusEvent) error {
	switch {
	case p == nil || p.publisher == nil:
		return appErr.New(appErr.ServiceUnavailable).WithMessage("status publisher is not configured")
	case p.topic == "":
		return appErr.New(appErr.InvalidParams).WithMessage("status topic is required")
	case !event.Status.IsTerminal():
		return appErr.ValidationError("status", fmt.Sprintf("%q is not terminal", event.Status))
	case event.SubmissionID <= 0:
		return appErr.ValidationError("submission_id", "required")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode status event of submission %d", event.SubmissionID)
	}
	msg := mq.NewMessage(body)
	msg.ID = strconv.FormatInt(event.SubmissionID, 10)
	msg.SetHeader(HeaderStatus, string(event.Status))
	msg.SetHeader(HeaderUserID, strconv.FormatInt(event.UserID, 10))
	if traceID, ok := ctx.Value(contextkey.TraceID).(string); ok && traceID != "" {
		msg.SetHeader(HeaderTraceID, traceID)
	}
	if err := p.publisher.Publish(ctx, p.topic, msg); err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "publish status event of submission %d", event.SubmissionID)
	}
	return nil
}
