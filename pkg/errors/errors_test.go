package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewMissingFrameError(t *testing.T) {
	err := NewMissingFrameError("Fit")

	// 基本的なエラーメッセージの確認
	want := "h2o: Fit: no training frame supplied"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// スタックトレースの存在確認
	formatted := fmt.Sprintf("%+v", err)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected stack trace to contain test file name")
	}

	// MissingFrameError型にキャスト可能か確認
	var frameErr *MissingFrameError
	if !As(err, &frameErr) {
		t.Error("Error should be castable to *MissingFrameError")
	}
}

func TestNewUnknownModelError(t *testing.T) {
	tests := []struct {
		name     string
		category string
		algo     string
		wantMsg  string
	}{
		{
			name:     "unexpected category",
			category: "Ordinal",
			algo:     "gbm",
			wantMsg:  `h2o: don't know what to do with model category "Ordinal" (algo: gbm)`,
		},
		{
			name:     "empty category",
			category: "",
			algo:     "kmeans",
			wantMsg:  `h2o: don't know what to do with model category "" (algo: kmeans)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUnknownModelError(tt.category, tt.algo)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			var modelErr *UnknownModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *UnknownModelError")
			}
			if modelErr.Category != tt.category {
				t.Errorf("Category = %v, want %v", modelErr.Category, tt.category)
			}
		})
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Builder", "Predict")

	// 基本的なエラーメッセージの確認
	want := "h2o: Builder: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// NotFittedError型にキャスト可能か確認
	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("Fit", "no fit can be made, missing feature variables")

	want := "h2o: Fit: no fit can be made, missing feature variables"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valueErr *ValueError
	if !As(err, &valueErr) {
		t.Error("Error should be castable to *ValueError")
	}
}

func TestNewRESTError(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "with body",
			method:  "POST",
			path:    "ModelBuilders/gbm",
			status:  500,
			body:    "water.exceptions.H2OIllegalArgumentException",
			wantMsg: "h2o: POST ModelBuilders/gbm: unexpected response code 500: water.exceptions.H2OIllegalArgumentException",
		},
		{
			name:    "without body",
			method:  "GET",
			path:    "Models/mykey",
			status:  404,
			body:    "",
			wantMsg: "h2o: GET Models/mykey: unexpected response code 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRESTError(tt.method, tt.path, tt.status, tt.body)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			var restErr *RESTError
			if !As(err, &restErr) {
				t.Error("Error should be castable to *RESTError")
			}
			if restErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", restErr.StatusCode, tt.status)
			}
		})
	}
}

func TestNewJobFailureError(t *testing.T) {
	err := NewJobFailureError("$03017f00000132d4ffffffff$_job1", "FAILED", "DistributedException from /127.0.0.1:54321")

	var jobErr *JobFailureError
	if !As(err, &jobErr) {
		t.Fatal("Error should be castable to *JobFailureError")
	}
	if jobErr.Status != "FAILED" {
		t.Errorf("Status = %v, want FAILED", jobErr.Status)
	}
	if !strings.Contains(err.Error(), "DistributedException") {
		t.Errorf("Error() should contain the server exception, got %v", err.Error())
	}
}

func TestWarningHandler(t *testing.T) {
	// 既存のハンドラをテスト後に復元する
	defer SetWarningHandler(func(w error) {})

	var captured error
	SetWarningHandler(func(w error) {
		captured = w
	})

	warning := NewCleanupWarning("gotmpkey1234", New("connection refused"))
	Warn(warning)

	if captured == nil {
		t.Fatal("Expected warning handler to capture the warning")
	}
	if !strings.Contains(captured.Error(), "gotmpkey1234") {
		t.Errorf("Warning should mention the key, got: %v", captured.Error())
	}
}

func TestWrapPreservesType(t *testing.T) {
	base := NewMissingFrameError("Fit")
	wrapped := Wrap(base, "building training request")

	var frameErr *MissingFrameError
	if !As(wrapped, &frameErr) {
		t.Error("Wrapped error should still be castable to *MissingFrameError")
	}
}
