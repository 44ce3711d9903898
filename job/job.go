// Package job tracks asynchronous server-side tasks polled to completion.
//
// Submitting a training request returns a job descriptor; the client then
// blocks, refreshing the job view until the server reports a terminal status.
// The pacing starts at 100ms and backs off to 1s between refreshes, matching
// the original client's behavior. The clock is injectable so tests control
// time.
package job

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/letsflykite/h2o-dev/pkg/errors"
	"github.com/letsflykite/h2o-dev/pkg/log"
	"github.com/letsflykite/h2o-dev/rest"
)

// Status is a server-reported job state.
type Status string

// Job lifecycle statuses. CREATED and RUNNING are non-terminal.
const (
	StatusCreated   Status = "CREATED"
	StatusRunning   Status = "RUNNING"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// terminal reports whether polling should stop at this status.
func (s Status) terminal() bool {
	return s != StatusCreated && s != StatusRunning
}

const (
	initialPollInterval = 100 * time.Millisecond
	maxPollInterval     = time.Second
)

// KeyRef is the {"name": ...} key object the server uses to reference
// frames, jobs and models.
type KeyRef struct {
	Name string `json:"name"`
}

// view is the wire shape of a single job record.
type view struct {
	Key       KeyRef  `json:"key"`
	Dest      KeyRef  `json:"dest"`
	Status    Status  `json:"status"`
	Progress  float64 `json:"progress"`
	Exception string  `json:"exception"`
}

// Response is the JSON payload carrying job records. Submission endpoints
// answer either {"job": {...}} or {"jobs": [{...}]}; poll refreshes answer
// the latter.
type Response struct {
	Job  *view  `json:"job"`
	Jobs []view `json:"jobs"`
}

// first returns the job record in the payload.
func (r *Response) first() (*view, bool) {
	if len(r.Jobs) > 0 {
		return &r.Jobs[0], true
	}
	if r.Job != nil {
		return r.Job, true
	}
	return nil, false
}

// Job is a handle to one server-side task.
type Job struct {
	conn   *rest.Connection
	clk    clock.Clock
	logger log.Logger

	jobType  string
	key      string
	destKey  string
	status   Status
	progress float64
	exc      string

	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option configures a Job handle.
type Option func(*Job)

// WithClock replaces the wall clock used between poll refreshes.
func WithClock(clk clock.Clock) Option {
	return func(j *Job) {
		j.clk = clk
	}
}

// WithPollInterval overrides the refresh pacing. An initial interval of zero
// refreshes as fast as the server answers.
func WithPollInterval(initial, max time.Duration) Option {
	return func(j *Job) {
		j.initialInterval = initial
		j.maxInterval = max
	}
}

// New builds a Job handle from a submission response. jobType is a short
// human-readable description used in logs, e.g. "gbm Model Build".
func New(conn *rest.Connection, resp *Response, jobType string, opts ...Option) (*Job, error) {
	v, ok := resp.first()
	if !ok {
		return nil, errors.New("h2o: submission response carried no job record")
	}

	j := &Job{
		conn:            conn,
		clk:             clock.New(),
		logger:          log.GetLoggerWithName("job"),
		jobType:         jobType,
		key:             v.Key.Name,
		destKey:         v.Dest.Name,
		status:          v.Status,
		progress:        v.Progress,
		exc:             v.Exception,
		initialInterval: initialPollInterval,
		maxInterval:     maxPollInterval,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Key returns the job's own key.
func (j *Job) Key() string { return j.key }

// DestinationKey returns the key the job's result is stored under.
func (j *Job) DestinationKey() string { return j.destKey }

// Status returns the last observed status.
func (j *Job) Status() Status { return j.status }

// Progress returns the last observed fractional progress, 0 to 1.
func (j *Job) Progress() float64 { return j.progress }

// Poll blocks the calling goroutine until the job reaches a terminal status,
// refreshing the job view between waits. DONE returns nil. FAILED returns a
// JobFailureError carrying the server's exception text. CANCELLED emits a
// warning and returns a JobFailureError as well.
func (j *Job) Poll(ctx context.Context) error {
	j.logger.Debug("polling job",
		log.JobKeyKey, j.key,
		log.JobStatusKey, string(j.status),
	)

	interval := j.initialInterval
	for !j.status.terminal() {
		if err := j.wait(ctx, interval); err != nil {
			return err
		}
		interval = nextInterval(interval, j.maxInterval)

		if err := j.refresh(ctx); err != nil {
			return err
		}
	}

	j.logger.Info("job finished",
		log.JobKeyKey, j.key,
		log.JobStatusKey, string(j.status),
	)

	switch j.status {
	case StatusDone:
		return nil
	case StatusCancelled:
		errors.Warn(errors.NewJobCancelledWarning(j.key))
		return errors.NewJobFailureError(j.key, string(j.status), j.exc)
	default:
		return errors.NewJobFailureError(j.key, string(j.status), j.exc)
	}
}

// refresh fetches the current job view.
func (j *Job) refresh(ctx context.Context) error {
	var resp Response
	if err := j.conn.Get(ctx, rest.Jobs(j.key), nil, &resp); err != nil {
		return err
	}
	v, ok := resp.first()
	if !ok {
		return errors.Newf("h2o: job view for %s carried no job record", j.key)
	}

	j.status = v.Status
	j.progress = v.Progress
	j.exc = v.Exception
	if v.Dest.Name != "" {
		j.destKey = v.Dest.Name
	}

	j.logger.Debug("job progress",
		log.JobKeyKey, j.key,
		log.JobStatusKey, string(j.status),
		log.ProgressKey, j.progress,
	)
	return nil
}

// wait sleeps for the given interval on the injected clock, honoring
// cancellation.
func (j *Job) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := j.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextInterval grows the refresh pacing by 100ms up to the cap.
func nextInterval(cur, max time.Duration) time.Duration {
	next := cur + 100*time.Millisecond
	if next > max {
		return max
	}
	return next
}
