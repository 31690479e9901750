package upload

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ByteRange is an inclusive, zero-based span of file content
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len is the number of bytes covered
func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}

func (r ByteRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ContentRange is a parsed `Content-Range: bytes <start>-<end>/<total|*>`
type ContentRange struct {
	ByteRange
	Total *int64 // nil when the header says "*"
}

var contentRangePattern = regexp.MustCompile(`^(?i:bytes)\s+(\d+)-(\d+)/(\d+|\*)$`)

// ParseContentRange parses a Content-Range header value
func ParseContentRange(header string) (ContentRange, error) {
	m := contentRangePattern.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return ContentRange{}, fmt.Errorf("%w: malformed Content-Range %q", ErrInvalidRange, header)
	}

	start, err1 := strconv.ParseInt(m[1], 10, 64)
	end, err2 := strconv.ParseInt(m[2], 10, 64)
	if err1 != nil || err2 != nil {
		return ContentRange{}, fmt.Errorf("%w: Content-Range %q out of range", ErrInvalidRange, header)
	}
	if end < start {
		return ContentRange{}, fmt.Errorf("%w: Content-Range end %d before start %d", ErrInvalidRange, end, start)
	}

	cr := ContentRange{ByteRange: ByteRange{Start: start, End: end}}
	if m[3] != "*" {
		total, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil || total <= 0 {
			return ContentRange{}, fmt.Errorf("%w: invalid total in Content-Range %q", ErrInvalidRange, header)
		}
		if end >= total {
			return ContentRange{}, fmt.Errorf("%w: Content-Range end %d is past total %d", ErrInvalidRange, end, total)
		}
		cr.Total = &total
	}
	return cr, nil
}

// MergeRanges sorts ranges by start and merges overlapping or adjacent ones.
// The input is not modified.
func MergeRanges(ranges []ByteRange) []ByteRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]ByteRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []ByteRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// TotalBytes sums the lengths of merged ranges
func TotalBytes(merged []ByteRange) int64 {
	var total int64
	for _, r := range merged {
		total += r.Len()
	}
	return total
}

// NextExpectedRanges lists the gaps in merged. The trailing gap is open-ended
// ("300-") while the size is unknown and closed ("300-499") once it is known.
func NextExpectedRanges(merged []ByteRange, expectedSize *int64) []string {
	gaps := []string{}
	var cursor int64

	for _, r := range merged {
		if r.Start > cursor {
			gaps = append(gaps, ByteRange{Start: cursor, End: r.Start - 1}.String())
		}
		if r.End+1 > cursor {
			cursor = r.End + 1
		}
	}

	switch {
	case expectedSize == nil:
		gaps = append(gaps, fmt.Sprintf("%d-", cursor))
	case cursor < *expectedSize:
		gaps = append(gaps, ByteRange{Start: cursor, End: *expectedSize - 1}.String())
	}
	return gaps
}
