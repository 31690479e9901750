package graph

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Project-Sylos/Mirage/internal/filter"
)

// Query holds the collection options of a list request
type Query struct {
	Filter *filter.Filter
	Top    int
}

// ParseQuery reads $filter and $top. A bad $filter wraps filter.ErrSyntax;
// a bad $top wraps ErrInvalidRequest.
func ParseQuery(values url.Values) (Query, error) {
	var q Query

	if text := strings.TrimSpace(values.Get("$filter")); text != "" {
		f, err := filter.Compile(text)
		if err != nil {
			return q, err
		}
		q.Filter = f
	}

	if raw := values.Get("$top"); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil || top < 1 {
			return q, fmt.Errorf("%w: $top must be a positive integer, got %q", ErrInvalidRequest, raw)
		}
		q.Top = top
	}

	return q, nil
}

// Apply filters resources and caps the result at Top
func (q Query) Apply(resources []*Resource) []*Resource {
	out := make([]*Resource, 0, len(resources))
	for _, r := range resources {
		if !q.Filter.Match(r) {
			continue
		}
		out = append(out, r)
		if q.Top > 0 && len(out) == q.Top {
			break
		}
	}
	return out
}
