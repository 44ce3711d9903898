// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// h2o-pyの例外システムにインスパイアされており、構造化されたエラー情報を提供します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("H2O-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// これにより、CleanupWarningなどのカスタム警告の処理方法を制御できます。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	// zerologが設定されている場合は優先的に使用
	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	// フォールバック: 従来のハンドラ
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// CleanupWarning はサーバー側の一時オブジェクトの削除に失敗した場合の警告です。
// 削除はベストエフォートで行われるため、失敗しても呼び出し元にはエラーを返しません。
type CleanupWarning struct {
	Key    string
	Reason error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("failed to remove temporary key %q: %v", w.Key, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *CleanupWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("key", w.Key).
		AnErr("reason", w.Reason).
		Str("type", "CleanupWarning")
}

// NewCleanupWarning は新しいCleanupWarningを作成します。
func NewCleanupWarning(key string, reason error) *CleanupWarning {
	return &CleanupWarning{Key: key, Reason: reason}
}

// JobCancelledWarning はポーリング中のジョブがCANCELLEDで終了した場合の警告です。
type JobCancelledWarning struct {
	JobKey string
}

func (w *JobCancelledWarning) Error() string {
	return fmt.Sprintf("job %s was cancelled", w.JobKey)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *JobCancelledWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("job_key", w.JobKey).
		Str("type", "JobCancelledWarning")
}

// NewJobCancelledWarning は新しいJobCancelledWarningを作成します。
func NewJobCancelledWarning(jobKey string) *JobCancelledWarning {
	return &JobCancelledWarning{JobKey: jobKey}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// MissingFrameError は学習用フレームが与えられないまま Fit を呼び出した場合のエラーです。
// h2o-pyのH2OMissingFrameErrorに対応します。
type MissingFrameError struct {
	Op string
}

func (e *MissingFrameError) Error() string {
	return fmt.Sprintf("h2o: %s: no training frame supplied", e.Op)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MissingFrameError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("type", "MissingFrameError")
}

// NewMissingFrameError は新しいMissingFrameErrorを作成し、スタックトレースを付与します。
func NewMissingFrameError(op string) error {
	err := &MissingFrameError{Op: op}
	return errors.WithStack(err)
}

// UnknownModelError はサーバーが報告したモデルカテゴリが未知の場合のエラーです。
// h2o-pyのH2OUnknownModelErrorに対応します。
type UnknownModelError struct {
	Category string
	Algo     string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("h2o: don't know what to do with model category %q (algo: %s)", e.Category, e.Algo)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnknownModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_category", e.Category).
		Str("algo", e.Algo).
		Str("type", "UnknownModelError")
}

// NewUnknownModelError は新しいUnknownModelErrorを作成し、スタックトレースを付与します。
func NewUnknownModelError(category, algo string) error {
	err := &UnknownModelError{Category: category, Algo: algo}
	return errors.WithStack(err)
}

// NotFittedError はモデルが未学習の状態で `Predict` や `Summary` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("h2o: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// `ValueError`よりも具体的なバリデーションロジックの失敗を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("h2o: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
// 例えば、存在しない列を特徴量に指定した場合など。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("h2o: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	リモートAPI特有のエラー型
//
// ===========================================================================

// RESTError はリモートサーバーが2xx以外のステータスを返した場合のエラーです。
// リトライは行わないため、呼び出し元までそのまま伝播します。
type RESTError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string // レスポンス本文の先頭部分
}

func (e *RESTError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("h2o: %s %s: unexpected response code %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("h2o: %s %s: unexpected response code %d", e.Method, e.Path, e.StatusCode)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *RESTError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("method", e.Method).
		Str("path", e.Path).
		Int("status_code", e.StatusCode).
		Str("type", "RESTError")
}

// NewRESTError は新しいRESTErrorを作成し、スタックトレースを付与します。
func NewRESTError(method, path string, statusCode int, body string) error {
	err := &RESTError{Method: method, Path: path, StatusCode: statusCode, Body: body}
	return errors.WithStack(err)
}

// JobFailureError はサーバー側のジョブがFAILEDまたはCANCELLEDで終了した場合のエラーです。
type JobFailureError struct {
	JobKey    string
	Status    string
	Exception string // サーバーが報告した例外メッセージ
}

func (e *JobFailureError) Error() string {
	if e.Exception != "" {
		return fmt.Sprintf("h2o: job %s finished with status %s: %s", e.JobKey, e.Status, e.Exception)
	}
	return fmt.Sprintf("h2o: job %s finished with status %s", e.JobKey, e.Status)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *JobFailureError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("job_key", e.JobKey).
		Str("job_status", e.Status).
		Str("exception", e.Exception).
		Str("type", "JobFailureError")
}

// NewJobFailureError は新しいJobFailureErrorを作成し、スタックトレースを付与します。
func NewJobFailureError(jobKey, status, exception string) error {
	err := &JobFailureError{JobKey: jobKey, Status: status, Exception: exception}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}
