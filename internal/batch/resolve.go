package batch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync"
)

// reference matches $<id>.<property>. Only ids that belong to the batch are
// substituted; anything else (e.g. $filter) is left as written.
var reference = regexp.MustCompile(`\$([A-Za-z0-9_-]+)\.([A-Za-z_][A-Za-z0-9_]*)`)

// quotedReference matches a JSON string that is exactly one reference, so the
// referenced value can keep its JSON type.
var quotedReference = regexp.MustCompile(`"\$([A-Za-z0-9_-]+)\.([A-Za-z_][A-Za-z0-9_]*)"`)

// resolver looks up properties of completed response bodies. responses is a
// snapshot; entries for requests that had not completed are nil.
type resolver struct {
	index     map[string]int
	responses []*Response

	mu      sync.Mutex
	decoded map[int]map[string]any
}

func newResolver(index map[string]int, responses []*Response) *resolver {
	return &resolver{
		index:     index,
		responses: responses,
		decoded:   make(map[int]map[string]any),
	}
}

func (r *resolver) lookup(id, property string) (any, error) {
	idx := r.index[id]
	resp := r.responses[idx]
	if resp == nil {
		return nil, fmt.Errorf("reference $%s.%s: request %q has not completed", id, property, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	body, ok := r.decoded[idx]
	if !ok {
		if err := json.Unmarshal(resp.Body, &body); err != nil || body == nil {
			return nil, fmt.Errorf("reference $%s.%s: response of request %q is not a JSON object", id, property, id)
		}
		r.decoded[idx] = body
	}

	val, ok := body[property]
	if !ok {
		return nil, fmt.Errorf("reference $%s.%s: property %q not found in response of request %q", id, property, property, id)
	}
	return val, nil
}

func (r *resolver) known(id string) bool {
	_, ok := r.index[id]
	return ok
}

// scalarText renders a referenced value for inline substitution
func scalarText(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("value of type %T cannot be embedded in text", val)
}

// resolveURL substitutes references in a URL, path-escaping the values
func (r *resolver) resolveURL(raw string) (string, error) {
	var firstErr error
	out := reference.ReplaceAllStringFunc(raw, func(m string) string {
		sub := reference.FindStringSubmatch(m)
		if !r.known(sub[1]) || firstErr != nil {
			return m
		}
		val, err := r.lookup(sub[1], sub[2])
		if err != nil {
			firstErr = err
			return m
		}
		text, err := scalarText(val)
		if err != nil {
			firstErr = fmt.Errorf("reference %s: %w", m, err)
			return m
		}
		return url.PathEscape(text)
	})
	return out, firstErr
}

// resolveBody substitutes references in a JSON body. A string that consists of
// a single reference is replaced by the referenced JSON value; references
// embedded in longer strings are replaced by their JSON-escaped text.
func (r *resolver) resolveBody(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}

	var firstErr error
	out := quotedReference.ReplaceAllFunc(body, func(m []byte) []byte {
		sub := quotedReference.FindSubmatch(m)
		id, prop := string(sub[1]), string(sub[2])
		if !r.known(id) || firstErr != nil {
			return m
		}
		val, err := r.lookup(id, prop)
		if err != nil {
			firstErr = err
			return m
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			firstErr = err
			return m
		}
		return encoded
	})
	if firstErr != nil {
		return nil, firstErr
	}

	out = reference.ReplaceAllFunc(out, func(m []byte) []byte {
		sub := reference.FindSubmatch(m)
		id, prop := string(sub[1]), string(sub[2])
		if !r.known(id) || firstErr != nil {
			return m
		}
		val, err := r.lookup(id, prop)
		if err != nil {
			firstErr = err
			return m
		}
		text, err := scalarText(val)
		if err != nil {
			firstErr = fmt.Errorf("reference %s: %w", m, err)
			return m
		}
		encoded, _ := json.Marshal(text)
		// Drop the surrounding quotes; the reference already sits inside a string
		return encoded[1 : len(encoded)-1]
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
