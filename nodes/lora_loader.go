package nodes

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"comfynodes/logger"
	"comfynodes/lora"
)

var (
	// ErrInvalidLoraName is returned for names that would leave the LoRA directory.
	ErrInvalidLoraName = errors.New("invalid lora name")
	// ErrInvalidWeight is returned for weights outside [MinLoraWeight, MaxLoraWeight].
	ErrInvalidWeight = errors.New("invalid lora weight")
)

const (
	MinLoraWeight = 0.0
	MaxLoraWeight = 2.0

	// TriggerSeparator joins trigger words for the prompt.
	TriggerSeparator = ", "
)

// TriggerWordsLoader resolves LoRA names inside Dir and extracts their
// trigger words.
type TriggerWordsLoader struct {
	Dir       string
	Extractor *lora.Extractor
}

// TriggerWordsResult is what the loader hands back to the host.
type TriggerWordsResult struct {
	Lora     string   `json:"lora" yaml:"lora"`
	Path     string   `json:"-" yaml:"-"`
	Weight   float64  `json:"weight" yaml:"weight"`
	Percent  int      `json:"percent" yaml:"percent"`
	Triggers []string `json:"triggers" yaml:"triggers"`
	Text     string   `json:"text" yaml:"text"`
}

// Available lists the LoRA files the host can choose from.
func (l *TriggerWordsLoader) Available() ([]string, error) {
	return lora.ListLoras(l.Dir)
}

// Resolve returns the path of name inside Dir. Only bare file names are accepted.
func (l *TriggerWordsLoader) Resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidLoraName, name)
	}
	return filepath.Join(l.Dir, name), nil
}

// TriggerWords extracts the top percent of name's trigger words. Extraction
// problems produce an empty trigger list, never an error.
func (l *TriggerWordsLoader) TriggerWords(name string, percent int, weight float64) (*TriggerWordsResult, error) {
	if weight < MinLoraWeight || weight > MaxLoraWeight {
		return nil, fmt.Errorf("%w: %g not in [%g, %g]", ErrInvalidWeight, weight, MinLoraWeight, MaxLoraWeight)
	}

	path, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}

	extractor := l.Extractor
	if extractor == nil {
		extractor = &lora.Extractor{}
	}

	clamped, _ := lora.ClampPercent(percent)
	triggers := extractor.TopPercent(path, percent)
	text := strings.Join(triggers, TriggerSeparator)

	log := logger.Node("lora_trigger_words")
	log.Info("Loaded LoRA", "lora", name, "weight", weight)
	log.Info("Extracted trigger words", "lora", name, "triggers", text)

	return &TriggerWordsResult{
		Lora:     name,
		Path:     path,
		Weight:   weight,
		Percent:  clamped,
		Triggers: triggers,
		Text:     text,
	}, nil
}
