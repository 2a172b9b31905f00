package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "ojjudge/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{ProblemNotFound, "Problem not found"},
		{InvalidParams, "Invalid parameters"},
		{DatabaseError, "Database operation failed"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{ValidationFailed, 400},
		{NotFound, 404},
		{SubmissionNotFound, 404},
		{ServiceUnavailable, 503},
		{JudgeSystemError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, DatabaseError)
	if err.Code != DatabaseError {
		t.Fatalf("expected DatabaseError, got %d", err.Code)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error to match cause")
	}
	if Wrap(nil, DatabaseError) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	inner := New(SubmissionNotFound)
	outer := fmt.Errorf("load submission: %w", inner)
	if got := GetCode(outer); got != SubmissionNotFound {
		t.Fatalf("GetCode() = %d, want %d", got, SubmissionNotFound)
	}
	if !Is(outer, SubmissionNotFound) {
		t.Fatalf("expected Is to see wrapped code")
	}
	if GetCode(errors.New("plain")) != InternalServerError {
		t.Fatalf("expected plain error to map to InternalServerError")
	}
	if GetCode(nil) != Success {
		t.Fatalf("expected nil error to map to Success")
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidationError("submission_id", "required")
	if err.Code != ValidationFailed {
		t.Fatalf("unexpected code %d", err.Code)
	}
	if err.Details["field"] != "submission_id" || err.Details["reason"] != "required" {
		t.Fatalf("unexpected details: %v", err.Details)
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(ProblemTypeInvalid, "不支持的题目类型: %s", "essay")
	if err.Error() != "不支持的题目类型: essay" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if err.Stack == "" {
		t.Fatalf("expected stack to be captured")
	}
}
