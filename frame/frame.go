// Package frame provides handles to column-oriented tables held by the
// server.
//
// A Frame never materializes data locally: it is an ordered list of named
// vector keys plus a row count. The server operates on whole frames keyed by
// a single name, so before training or prediction the client combines a
// frame's vecs into one temporary server-side object and works with that key.
package frame

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/letsflykite/h2o-dev/pkg/errors"
	"github.com/letsflykite/h2o-dev/pkg/log"
	"github.com/letsflykite/h2o-dev/rest"
)

// Vec is a named remote column backed by a server-side vector key.
type Vec struct {
	Name string
	Key  string
}

// Frame is an ordered collection of vecs sharing a row count. The local
// process holds only names and keys; the data stays on the server.
type Frame struct {
	vecs []Vec
	rows int64
}

// New builds a frame handle from vecs.
func New(vecs []Vec, rows int64) *Frame {
	f := &Frame{
		vecs: make([]Vec, len(vecs)),
		rows: rows,
	}
	copy(f.vecs, vecs)
	return f
}

// Vecs returns a copy of the frame's column handles.
func (f *Frame) Vecs() []Vec {
	out := make([]Vec, len(f.vecs))
	copy(out, f.vecs)
	return out
}

// Names returns the column names in frame order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.vecs))
	for i, v := range f.vecs {
		names[i] = v.Name
	}
	return names
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int {
	if f == nil {
		return 0
	}
	return len(f.vecs)
}

// NumRows returns the server-reported row count.
func (f *Frame) NumRows() int64 { return f.rows }

// keyRef is the {"name": ...} key object used throughout the wire format.
type keyRef struct {
	Name string `json:"name"`
}

// metaResponse is the wire shape of the frame-metadata lookup.
type metaResponse struct {
	Frames []struct {
		Rows    int64    `json:"rows"`
		VecKeys []keyRef `json:"veckeys"`
		Columns []struct {
			Label string `json:"label"`
		} `json:"columns"`
	} `json:"frames"`
}

// Lookup fetches the metadata of a server-side frame by key and reconstructs
// a local handle: column labels zipped with vector keys, plus the row count.
func Lookup(ctx context.Context, conn *rest.Connection, key string) (*Frame, error) {
	var resp metaResponse
	if err := conn.Get(ctx, rest.Frames(key), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Frames) == 0 {
		return nil, errors.Newf("h2o: no frame metadata returned for key %s", key)
	}

	meta := resp.Frames[0]
	if len(meta.Columns) != len(meta.VecKeys) {
		return nil, errors.Newf("h2o: frame %s metadata mismatch: %d columns vs %d veckeys",
			key, len(meta.Columns), len(meta.VecKeys))
	}

	vecs := make([]Vec, len(meta.Columns))
	for i, col := range meta.Columns {
		vecs[i] = Vec{Name: col.Label, Key: meta.VecKeys[i].Name}
	}

	log.GetLoggerWithName("frame").Debug("frame metadata fetched",
		log.FrameKeyKey, key,
		log.ColumnsKey, len(vecs),
		log.RowsKey, meta.Rows,
	)
	return New(vecs, meta.Rows), nil
}

// TmpKey returns a fresh client-generated key for temporary frames.
func TmpKey() string {
	return "go" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// rapidsResponse carries the expression endpoint's error report. The endpoint
// answers 200 even when the expression fails, with the failure in the body.
type rapidsResponse struct {
	Error string `json:"error"`
}

// Send combines the frame's vecs into a single server-side frame under a
// fresh temporary key and returns that key. Frames are a local grouping of
// vector keys, so this cbind is what gives the server one object to train or
// predict on.
func Send(ctx context.Context, conn *rest.Connection, f *Frame) (string, error) {
	if f.NumCols() == 0 {
		return "", errors.NewValueError("send frame", "frame has no columns to combine")
	}

	key := TmpKey()
	var ast strings.Builder
	ast.WriteString("(= !")
	ast.WriteString(key)
	ast.WriteString(" (cbind %FALSE")
	for _, v := range f.vecs {
		ast.WriteString(" %")
		ast.WriteString(v.Key)
	}
	ast.WriteString("))")

	form := url.Values{}
	form.Set("ast", ast.String())

	var resp rapidsResponse
	if err := conn.PostForm(ctx, rest.RouteRapids, form, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", errors.Newf("h2o: expression not evaluated: %s", resp.Error)
	}

	log.GetLoggerWithName("frame").Debug("frame combined on server",
		log.FrameKeyKey, key,
		log.ColumnsKey, f.NumCols(),
		log.RowsKey, f.NumRows(),
	)
	return key, nil
}

// Remove deletes a server-side object by key.
func Remove(ctx context.Context, conn *rest.Connection, key string) error {
	query := url.Values{}
	query.Set("key", key)
	return conn.Delete(ctx, rest.RouteRemove, query, nil)
}

// TempKey is a temporary server-side frame key whose cleanup is bound to the
// creating scope. Callers defer Remove so the remote object is deleted on
// every exit path, not just the success path.
type TempKey struct {
	conn    *rest.Connection
	key     string
	removed bool
}

// SendTemp combines the frame like Send and wraps the resulting key for
// deferred cleanup.
func SendTemp(ctx context.Context, conn *rest.Connection, f *Frame) (*TempKey, error) {
	key, err := Send(ctx, conn, f)
	if err != nil {
		return nil, err
	}
	return &TempKey{conn: conn, key: key}, nil
}

// Key returns the server-side key.
func (t *TempKey) Key() string { return t.key }

// Remove deletes the remote object. It is idempotent and best-effort:
// failures are reported through the warning hook, never returned, so the
// method is safe to call from a defer.
func (t *TempKey) Remove(ctx context.Context) {
	if t == nil || t.removed {
		return
	}
	t.removed = true
	if err := Remove(ctx, t.conn, t.key); err != nil {
		errors.Warn(errors.NewCleanupWarning(t.key, err))
	}
}
