package batch

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidBatch is wrapped by every validation failure. Nothing in the
	// batch executes when it is returned.
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrCircularDependency reports a dependsOn cycle. It also matches
	// ErrInvalidBatch.
	ErrCircularDependency = fmt.Errorf("%w: circular dependency", ErrInvalidBatch)
)

var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
	"HEAD":   true,
}

// validate checks the structural rules of a batch and returns the index of
// every request id.
func validate(requests []Request, maxRequests int) (map[string]int, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: batch must contain at least one request", ErrInvalidBatch)
	}
	if len(requests) > maxRequests {
		return nil, fmt.Errorf("%w: batch contains %d requests, limit is %d", ErrInvalidBatch, len(requests), maxRequests)
	}

	index := make(map[string]int, len(requests))
	for i, req := range requests {
		if req.ID == "" {
			return nil, fmt.Errorf("%w: request %d has no id", ErrInvalidBatch, i)
		}
		if _, dup := index[req.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate request id %q", ErrInvalidBatch, req.ID)
		}
		if !allowedMethods[strings.ToUpper(req.Method)] {
			return nil, fmt.Errorf("%w: request %q has invalid method %q", ErrInvalidBatch, req.ID, req.Method)
		}
		if req.URL == "" {
			return nil, fmt.Errorf("%w: request %q has no url", ErrInvalidBatch, req.ID)
		}
		index[req.ID] = i
	}

	for _, req := range requests {
		for _, dep := range req.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("%w: request %q depends on unknown request %q", ErrInvalidBatch, req.ID, dep)
			}
		}
	}

	return index, nil
}

// topoOrder runs Kahn's algorithm over the dependsOn edges. Ready nodes are
// taken in input order, so the result is deterministic. It also returns the
// wave of each request: one more than the deepest of its dependencies.
func topoOrder(requests []Request, index map[string]int) ([]int, []int, error) {
	n := len(requests)
	inDegree := make([]int, n)
	dependents := make([][]int, n)

	for i, req := range requests {
		seen := make(map[int]bool, len(req.DependsOn))
		for _, dep := range req.DependsOn {
			d := index[dep]
			if seen[d] {
				continue
			}
			seen[d] = true
			dependents[d] = append(dependents[d], i)
			inDegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i := range requests {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, n)
	level := make([]int, n)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)

		for _, next := range dependents[cur] {
			if level[cur]+1 > level[next] {
				level[next] = level[cur] + 1
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < n {
		var stuck []string
		for i, req := range requests {
			if inDegree[i] > 0 {
				stuck = append(stuck, req.ID)
			}
		}
		return nil, nil, fmt.Errorf("%w among requests %s", ErrCircularDependency, strings.Join(stuck, ", "))
	}

	return order, level, nil
}

// waves groups the topological order by level, keeping input order inside a wave
func waves(order, level []int) [][]int {
	var out [][]int
	for _, idx := range order {
		l := level[idx]
		for len(out) <= l {
			out = append(out, nil)
		}
		out[l] = append(out[l], idx)
	}
	for _, w := range out {
		slices.Sort(w)
	}
	return out
}
