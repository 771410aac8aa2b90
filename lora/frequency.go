package lora

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCount is returned when a tag count cannot be read as an integer.
	ErrInvalidCount = errors.New("lora: tag count is not an integer")
	// ErrMalformedTable is returned when ss_tag_frequency is not a JSON object.
	ErrMalformedTable = errors.New("lora: malformed tag frequency table")
)

// ParseTagFrequency decodes the JSON object stored in ss_tag_frequency,
// keeping key order. A repeated tag keeps its first position and its last count.
func ParseTagFrequency(s string) (TagFrequencyTable, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected object, got %v", ErrMalformedTable, tok)
	}

	table := TagFrequencyTable{}
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}
		tag, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}

		count, err := coerceCount(raw)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", tag, err)
		}

		if i, seen := index[tag]; seen {
			table[i].Count = count
			continue
		}
		index[tag] = len(table)
		table = append(table, TagCount{Tag: tag, Count: count})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedTable)
	}

	return table, nil
}

// coerceCount accepts integers, floats (truncated toward zero), booleans and
// strings holding a base-10 integer.
func coerceCount(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCount, err)
	}

	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(x.String()); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidCount, x)
		}
		return int(math.Trunc(f)), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCount, x)
		}
		return i, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidCount, string(raw))
	}
}

// RankByFrequency orders tags by descending count. Equal counts keep table order.
func RankByFrequency(table TagFrequencyTable) []string {
	sorted := slices.Clone(table)
	slices.SortStableFunc(sorted, func(a, b TagCount) int {
		return cmp.Compare(b.Count, a.Count)
	})

	ranked := make([]string, len(sorted))
	for i, tc := range sorted {
		ranked[i] = tc.Tag
	}
	return ranked
}

// TopCount is how many of n ranked tags percent selects: n times percent/100
// computed in float64 and truncated, at least one unless n is zero. The float
// product can land just under a whole number, so TopCount(100, 29) is 28.
func TopCount(n, percent int) int {
	if n <= 0 {
		return 0
	}
	k := int(float64(n) * (float64(percent) / 100.0))
	return min(n, max(1, k))
}

// ClampPercent forces percent into [1,100] and reports whether it changed.
func ClampPercent(percent int) (int, bool) {
	clamped := min(100, max(1, percent))
	return clamped, clamped != percent
}
