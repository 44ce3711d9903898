// Package log defines standard attribute keys for H2O client operations.
//
// This file contains predefined attribute keys that provide consistency across
// all logging operations in the client. Using these standard keys enables better
// log analysis, monitoring, and debugging of remote training workflows.
//
// The attributes are organized into categories:
//   - Model and Operation Context
//   - Remote Object References
//   - Transport Context
//   - Job Progress
//
// These keys follow a hierarchical naming convention (e.g., "model.key",
// "rest.path") to enable structured log analysis and filtering.

package log

// Model and Operation Context
// These attributes identify the algorithm, model instance, and operation being performed.
const (
	// AlgoKey identifies the remote training method.
	// Examples: "gbm", "glm", "kmeans", "deeplearning"
	AlgoKey = "ml.algo"

	// ModelKeyKey holds the destination key of a fitted model on the server.
	ModelKeyKey = "model.key"

	// ModelCategoryKey holds the server-reported model category.
	// Values: "Binomial", "Multinomial", "Clustering", "Regression"
	ModelCategoryKey = "model.category"

	// OperationKey specifies the client operation being performed.
	// Standard values: "fit", "predict", "performance", "remove"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "estimator", "frame", "job", "rest"
	ComponentKey = "component"
)

// Remote Object References
// These attributes reference server-held objects by their opaque keys.
const (
	// FrameKeyKey holds the key of a server-side frame.
	FrameKeyKey = "frame.key"

	// ColumnsKey indicates the number of columns in a frame.
	ColumnsKey = "frame.columns"

	// RowsKey indicates the number of rows in a frame.
	RowsKey = "frame.rows"

	// IgnoredColumnsKey counts the columns excluded from training.
	IgnoredColumnsKey = "frame.ignored_columns"
)

// Transport Context
// These attributes capture REST request/response information.
const (
	// MethodKey is the HTTP method of a request.
	MethodKey = "rest.method"

	// PathKey is the endpoint suffix of a request, e.g. "ModelBuilders/gbm".
	PathKey = "rest.path"

	// StatusCodeKey is the HTTP status code of a response.
	StatusCodeKey = "rest.status_code"

	// DurationMsKey records the round-trip time of a request in milliseconds.
	DurationMsKey = "rest.duration_ms"
)

// Job Progress
// These attributes track asynchronous server-side jobs polled to completion.
const (
	// JobKeyKey holds the key of a server-side job.
	JobKeyKey = "job.key"

	// JobStatusKey is the last observed job status.
	// Values: "CREATED", "RUNNING", "DONE", "CANCELLED", "FAILED"
	JobStatusKey = "job.status"

	// ProgressKey is the fractional progress of a running job, 0 to 1.
	ProgressKey = "job.progress"
)
