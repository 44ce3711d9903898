// Package h2o provides a Go client for the H2O machine-learning server's
// REST API: model training, prediction and frame lifecycle management,
// orchestrated over HTTP.
//
// The client is glue, not an engine. All training, scoring and statistics
// run server-side; this module shapes requests, polls jobs to completion and
// marshals JSON responses into local handles. Datasets never materialize in
// the Go process — a frame is a list of column names and server-side vector
// keys.
//
// # Quick Start
//
// Fit a gradient boosting model and predict with it:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/letsflykite/h2o-dev/estimator"
//	    "github.com/letsflykite/h2o-dev/frame"
//	    "github.com/letsflykite/h2o-dev/rest"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    conn := rest.New("localhost", 54321)
//
//	    train := frame.New([]frame.Vec{
//	        {Name: "a", Key: "$v1"},
//	        {Name: "b", Key: "$v2"},
//	        {Name: "y", Key: "$v3"},
//	    }, 1000)
//
//	    builder := estimator.NewBuilder(conn, "gbm").
//	        WithTrainingFrame(train).
//	        WithParam("ntrees", 50)
//
//	    if err := builder.Fit(ctx, estimator.Cols("a", "b"), estimator.ByName("y")); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    summary, _ := builder.Summary()
//	    fmt.Println(summary)
//	}
//
// # Packages
//
// The module is organized into several packages:
//
//   - rest: the HTTP transport speaking the server's fixed endpoint contract
//   - frame: remote frame handles and temporary-frame lifecycle
//   - job: asynchronous job handles polled to completion
//   - estimator: the model builder — parameter folding, column resolution,
//     fit, predict and performance
//   - model: the four fitted-result variants (binomial, multinomial,
//     clustering, regression) dispatched on the server's category string
//   - pkg/errors: typed errors with stack traces and the warning hook
//   - pkg/log: structured logging
//
// # Error Handling
//
// Failures are returned immediately; there is no retry logic. Errors carry
// stack traces and match with errors.As:
//
//	var nfe *errors.NotFittedError
//	if errors.As(err, &nfe) {
//	    // fit first
//	}
//
// Best-effort cleanup of temporary server-side objects never fails a call;
// removal problems surface through the pkg/errors warning hook instead.
package h2o
