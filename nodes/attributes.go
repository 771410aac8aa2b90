package nodes

import (
	"errors"
	"fmt"
	"strings"

	"comfynodes/helpers"
	"comfynodes/logger"
)

// MaxAttributes is the number of entries the formatter node exposes.
const MaxAttributes = 5

var (
	// ErrInvalidThresholds is returned when the weight bands are out of order.
	ErrInvalidThresholds = errors.New("invalid weight thresholds")
	// ErrTooManyAttributes is returned for more than MaxAttributes entries.
	ErrTooManyAttributes = errors.New("too many attributes")
)

// Attribute is one key=value pair with an emphasis weight.
type Attribute struct {
	Key    string  `json:"key"`
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// FormatOptions sets the weight bands and the separator between entries.
// Weights below LowWeightMax get one pair of parentheses, below
// MediumWeightMax two, anything else three.
type FormatOptions struct {
	LowWeightMax    float64 `json:"lowWeightMax"`
	MediumWeightMax float64 `json:"mediumWeightMax"`
	Separator       string  `json:"separator"`
}

// DefaultFormatOptions returns the formatter node's defaults.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{LowWeightMax: 0.35, MediumWeightMax: 0.7, Separator: ", "}
}

// Validate checks that the bands are ordered and below 1.0.
func (o FormatOptions) Validate() error {
	if o.LowWeightMax >= o.MediumWeightMax {
		return fmt.Errorf("%w: low weight max (%s) must be less than medium weight max (%s)",
			ErrInvalidThresholds, helpers.FormatFloat(o.LowWeightMax), helpers.FormatFloat(o.MediumWeightMax))
	}
	if o.MediumWeightMax >= 1.0 {
		return fmt.Errorf("%w: medium weight max (%s) must be less than 1.0",
			ErrInvalidThresholds, helpers.FormatFloat(o.MediumWeightMax))
	}
	return nil
}

// Format renders a single attribute for its weight band.
func (o FormatOptions) Format(a Attribute) string {
	item := fmt.Sprintf("%s=%s:%s", a.Key, a.Value, helpers.FormatFloat(a.Weight))
	switch {
	case a.Weight < o.LowWeightMax:
		return "(" + item + ")"
	case a.Weight < o.MediumWeightMax:
		return "((" + item + "))"
	default:
		return "(((" + item + ")))"
	}
}

// FormatAttributes drops entries with a blank key, formats the rest and joins
// them with the separator. It returns the kept attributes alongside the string.
func FormatAttributes(attrs []Attribute, opts FormatOptions) (string, []Attribute, error) {
	if err := opts.Validate(); err != nil {
		return "", nil, err
	}
	if len(attrs) > MaxAttributes {
		return "", nil, fmt.Errorf("%w: got %d, at most %d", ErrTooManyAttributes, len(attrs), MaxAttributes)
	}

	kept := make([]Attribute, 0, len(attrs))
	formatted := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if helpers.IsBlank(a.Key) {
			continue
		}
		kept = append(kept, a)
		formatted = append(formatted, opts.Format(a))
	}

	result := strings.Join(formatted, opts.Separator)
	logger.Node("weighted_attributes_formatter").Debug("Processed attributes", "count", len(kept), "result", result)

	return result, kept, nil
}
