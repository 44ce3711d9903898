package rest

import "net/url"

// Endpoint suffixes of the fixed server contract. Keys generated by the
// server can contain characters that need escaping inside a path segment, so
// every route builder escapes its arguments.
const (
	// RouteRapids is the expression endpoint used to combine vecs into a
	// single temporary frame.
	RouteRapids = "Rapids"

	// RouteRemove is the remove-by-key cleanup endpoint; the key travels as
	// the "key" query parameter.
	RouteRemove = "Remove"
)

// ModelBuilders returns the per-algorithm builder endpoint, used both to
// fetch the default parameter schema (GET) and to submit a training job
// (POST).
func ModelBuilders(algo string) string {
	return "ModelBuilders/" + url.PathEscape(algo)
}

// Models returns the model-fetch endpoint for a destination key.
func Models(key string) string {
	return "Models/" + url.PathEscape(key)
}

// Jobs returns the job-view endpoint used by poll refreshes.
func Jobs(key string) string {
	return "Jobs/" + url.PathEscape(key)
}

// Frames returns the frame-metadata endpoint for a frame key.
func Frames(key string) string {
	return "Frames/" + url.PathEscape(key)
}

// Predictions returns the blocking prediction endpoint for a fitted model
// applied to a frame.
func Predictions(modelKey, frameKey string) string {
	return "Predictions/models/" + url.PathEscape(modelKey) + "/frames/" + url.PathEscape(frameKey)
}
