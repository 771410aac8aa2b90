package lora

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"comfynodes/helpers"
	"comfynodes/safetensors"
)

// Extension is the file suffix ListLoras selects.
const Extension = ".safetensors"

// ListLoras returns the sorted names of the LoRA files directly inside dir.
func ListLoras(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list loras in %s: %w", dir, err)
	}

	loras := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		loras = append(loras, entry.Name())
	}

	return loras, nil
}

// Summarize reads the trainer metadata of path. Unlike extraction it reports
// unreadable files as errors.
func (e *Extractor) Summarize(path string) (*Summary, error) {
	header, err := safetensors.ReadHeader(path)
	if err != nil {
		return nil, err
	}

	metadata := header.MetadataStrings()
	summary := &Summary{
		File:         filepath.Base(path),
		Name:         metadata["ss_output_name"],
		BaseModel:    metadata["ss_sd_model_name"],
		NetworkDim:   metadata["ss_network_dim"],
		NetworkAlpha: metadata["ss_network_alpha"],
		Epochs:       metadata["ss_num_epochs"],
		StartedAt:    unixSeconds(metadata["ss_training_started_at"]),
		FinishedAt:   unixSeconds(metadata["ss_training_finished_at"]),
		Metadata:     metadata,
	}
	delete(summary.Metadata, TagFrequencyKey)

	if summary.StartedAt != nil && summary.FinishedAt != nil && summary.FinishedAt.After(*summary.StartedAt) {
		elapsed := summary.FinishedAt.Sub(*summary.StartedAt).Round(time.Second)
		summary.TrainingTime = helpers.HumanDuration(elapsed)
	}

	extraction := e.ExtractFrequencyTable(path)
	summary.Tags = len(extraction.Table)
	summary.TagReason = extraction.Reason

	return summary, nil
}

// Summarize uses the default extractor.
func Summarize(path string) (*Summary, error) {
	return defaultExtractor.Summarize(path)
}

// unixSeconds parses the fractional epoch seconds trainers store as text.
func unixSeconds(s string) *time.Time {
	if s == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(0, int64(secs*float64(time.Second))).UTC()
	return &t
}
