package hook

import (
	"time"

	"github.com/d5/tengo/v2"

	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// Filter is a compiled Tengo expression selecting which items to download.
// The expression sees the variables id, collection and datetime (RFC 3339
// string) and must evaluate to a boolean, e.g.
//
//	collection == "sentinel-2-l2a" && datetime >= "2023-01-01"
type Filter struct {
	compiled *tengo.Compiled
}

// NewFilter compiles expr into an item filter.
func NewFilter(expr string) (*Filter, error) {
	script := tengo.NewScript([]byte("keep := (" + expr + ")"))
	_ = script.Add("id", "")
	_ = script.Add("collection", "")
	_ = script.Add("datetime", "")
	compiled, err := script.Compile()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrFilterCompile, "%q: %v", expr, err)
	}
	return &Filter{compiled: compiled}, nil
}

// Keep evaluates the expression for one item.
func (f *Filter) Keep(item *stac.Item) (bool, error) {
	run := f.compiled.Clone()
	_ = run.Set("id", item.ID)
	_ = run.Set("collection", item.Collection)
	datetime := ""
	if !item.Datetime.IsZero() {
		datetime = item.Datetime.Format(time.RFC3339)
	}
	_ = run.Set("datetime", datetime)
	if err := run.Run(); err != nil {
		return false, errors.Wrapf(errors.ErrHookExecution, "filter on item %s: %v", item.ID, err)
	}
	return run.Get("keep").Bool(), nil
}

// Apply returns the items of coll the filter keeps, preserving order.
func (f *Filter) Apply(coll *stac.ItemCollection) (*stac.ItemCollection, error) {
	out := &stac.ItemCollection{Extra: coll.Extra}
	for _, item := range coll.Items {
		keep, err := f.Keep(item)
		if err != nil {
			return nil, err
		}
		if keep {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}
