package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// EdgeKind affects how an edge's function result is interpreted.
type EdgeKind string

const (
	// KindTransform forwards the function's result to the destination beaker.
	KindTransform EdgeKind = "transform"
	// KindConditional forwards the original item when the function returns true.
	KindConditional EdgeKind = "conditional"
	// KindSplitter routes the original item to one of several destinations by key.
	KindSplitter EdgeKind = "splitter"
)

// EdgeFunc transforms one item into another. Returning (nil, nil) filters
// the item out, unless the edge was built with RequireResult.
type EdgeFunc func(ctx context.Context, item any) (any, error)

// CondFunc decides whether an item passes through a conditional edge.
type CondFunc func(ctx context.Context, item any) (bool, error)

// KeyFunc picks the routing key for a splitter edge. An empty key drops the
// item.
type KeyFunc func(ctx context.Context, item any) (string, error)

// ErrorRoute sends errors matched by Match to the named error beaker instead
// of failing the run.
type ErrorRoute struct {
	Match func(error) bool
	To    string
}

// SplitRoute is one destination of a splitter edge. A nil Func forwards the
// item unchanged.
type SplitRoute struct {
	To   string
	Func EdgeFunc
}

// Edge is a directed connection between two beakers.
type Edge struct {
	Name        string
	From        string
	To          string
	Kind        EdgeKind
	Func        EdgeFunc
	Cond        CondFunc
	ErrorRoutes []ErrorRoute
	WholeRecord bool
	AllowFilter bool

	// splitter edges route by key instead of using To
	KeyFunc KeyFunc
	Routes  map[string]SplitRoute
}

// EdgeOption configures an edge at registration time.
type EdgeOption func(*Edge)

// EdgeName overrides the name derived from the edge function.
func EdgeName(name string) EdgeOption {
	return func(e *Edge) { e.Name = name }
}

// OnError routes matching errors to the named error beaker. The beaker is
// created implicitly (holding ErrorItem values) if it does not exist.
func OnError(match func(error) bool, to string) EdgeOption {
	return func(e *Edge) {
		e.ErrorRoutes = append(e.ErrorRoutes, ErrorRoute{Match: match, To: to})
	}
}

// WholeRecord passes the item's full Record to the edge function instead of
// the upstream item alone.
func WholeRecord() EdgeOption {
	return func(e *Edge) { e.WholeRecord = true }
}

// RequireResult makes a nil transform result an ErrNoEdgeResult instead of
// silently filtering the item.
func RequireResult() EdgeOption {
	return func(e *Edge) { e.AllowFilter = false }
}

// ErrorItem is what error beakers hold: the failing item plus the error.
type ErrorItem struct {
	Item      any    `json:"item"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// Typed adapts a strongly typed function to an EdgeFunc, failing with a
// descriptive error when an item of the wrong type flows in.
func Typed[In, Out any](fn func(ctx context.Context, in *In) (*Out, error)) EdgeFunc {
	return func(ctx context.Context, item any) (any, error) {
		in, ok := item.(*In)
		if !ok {
			return nil, fmt.Errorf("expected %T, got %T", new(In), item)
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, nil
		}
		return out, nil
	}
}

// funcName returns a short name for fn, used when EdgeName is not given.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return "edge"
	}
	full := runtime.FuncForPC(v.Pointer()).Name()
	if i := strings.LastIndex(full, "."); i >= 0 {
		full = full[i+1:]
	}
	return strings.TrimSuffix(full, "-fm")
}
