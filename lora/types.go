package lora

import "time"

// Reason says why an Extraction is empty. ReasonOK means it is not.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonIOFailure           Reason = "io_failure"
	ReasonMalformedHeader     Reason = "malformed_header"
	ReasonMissingMetadata     Reason = "missing_metadata"
	ReasonMissingTagFrequency Reason = "missing_tag_frequency"
	ReasonInvalidCount        Reason = "invalid_count"
)

// TagCount is one entry of a tag frequency table.
type TagCount struct {
	Tag   string `json:"tag" yaml:"tag"`
	Count int    `json:"count" yaml:"count"`
}

// TagFrequencyTable keeps tags in the order they appear in the file.
type TagFrequencyTable []TagCount

// Extraction is the outcome of reading one file. Table is empty unless
// Reason is ReasonOK; Err carries the underlying cause when there is one.
type Extraction struct {
	Path   string
	Table  TagFrequencyTable
	Reason Reason
	Err    error
}

// Summary describes a LoRA file from the metadata its trainer wrote.
type Summary struct {
	File         string            `json:"file" yaml:"file"`
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	BaseModel    string            `json:"baseModel,omitempty" yaml:"baseModel,omitempty"`
	NetworkDim   string            `json:"networkDim,omitempty" yaml:"networkDim,omitempty"`
	NetworkAlpha string            `json:"networkAlpha,omitempty" yaml:"networkAlpha,omitempty"`
	Epochs       string            `json:"epochs,omitempty" yaml:"epochs,omitempty"`
	StartedAt    *time.Time        `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt   *time.Time        `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	TrainingTime string            `json:"trainingTime,omitempty" yaml:"trainingTime,omitempty"`
	Tags         int               `json:"tags" yaml:"tags"`
	TagReason    Reason            `json:"tagReason" yaml:"tagReason"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
