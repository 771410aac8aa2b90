package lora

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"comfynodes/logger"
	"comfynodes/safetensors"
)

// TagFrequencyKey is the metadata entry written by LoRA trainers.
const TagFrequencyKey = "ss_tag_frequency"

// Cache stores successful extractions between calls.
type Cache interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Extractor reads tag frequency tables from LoRA files. The zero value works
// without a cache and is safe for concurrent use.
type Extractor struct {
	Cache Cache
}

var defaultExtractor = &Extractor{}

// ExtractFrequencyTable reads path with the default extractor.
func ExtractFrequencyTable(path string) Extraction {
	return defaultExtractor.ExtractFrequencyTable(path)
}

// TopPercent returns the top percent of path's tags with the default extractor.
func TopPercent(path string, percent int) []string {
	return defaultExtractor.TopPercent(path, percent)
}

// ExtractFrequencyTable never fails outright: any problem yields an empty
// table with Reason and Err set, and is logged.
func (e *Extractor) ExtractFrequencyTable(path string) Extraction {
	key, cacheable := e.cacheKey(path)
	if cacheable {
		if table, ok := e.cached(key); ok {
			logger.Lora(path).Debug("Tag frequency cache hit", "tags", len(table))
			return Extraction{Path: path, Table: table, Reason: ReasonOK}
		}
	}

	table, err := readTagFrequency(path)
	if err != nil {
		result := Extraction{Path: path, Table: TagFrequencyTable{}, Reason: classify(err), Err: err}
		log := logger.Lora(path)
		switch result.Reason {
		case ReasonMissingMetadata:
			log.Info("No metadata found")
		case ReasonMissingTagFrequency:
			log.Info("No tag frequency data found")
		default:
			log.Warn("Error reading tag frequency", "reason", result.Reason, "error", err)
		}
		return result
	}

	if cacheable {
		e.store(key, table)
	}

	return Extraction{Path: path, Table: table, Reason: ReasonOK}
}

// TopPercent ranks the file's tags and keeps the leading percent of them.
// percent is clamped into [1,100]. Any extraction failure yields an empty slice.
func (e *Extractor) TopPercent(path string, percent int) []string {
	clamped, changed := ClampPercent(percent)
	if changed {
		logger.Lora(path).Warn("Percent out of range, clamping", "percent", percent, "clamped", clamped)
	}

	ranked := RankByFrequency(e.ExtractFrequencyTable(path).Table)
	return ranked[:TopCount(len(ranked), clamped)]
}

func readTagFrequency(path string) (TagFrequencyTable, error) {
	header, err := safetensors.ReadHeader(path)
	if err != nil {
		return nil, err
	}

	raw, err := header.MetadataString(TagFrequencyKey)
	if err != nil {
		return nil, err
	}

	return ParseTagFrequency(raw)
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, safetensors.ErrNoMetadata):
		return ReasonMissingMetadata
	case errors.Is(err, safetensors.ErrNoMetadataKey):
		return ReasonMissingTagFrequency
	case errors.Is(err, ErrInvalidCount):
		return ReasonInvalidCount
	case errors.Is(err, safetensors.ErrMalformed), errors.Is(err, ErrMalformedTable):
		return ReasonMalformedHeader
	default:
		return ReasonIOFailure
	}
}

// cacheKey identifies the file by absolute path, size and modification time
// so an edited file is never served a stale table.
func (e *Extractor) cacheKey(path string) (string, bool) {
	if e.Cache == nil {
		return "", false
	}

	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return fmt.Sprintf("tagfreq:%s:%d:%d", abs, fi.Size(), fi.ModTime().UnixNano()), true
}

func (e *Extractor) cached(key string) (TagFrequencyTable, bool) {
	data, err := e.Cache.Get(key)
	if err != nil {
		return nil, false
	}

	var table TagFrequencyTable
	if err := json.Unmarshal(data, &table); err != nil {
		logger.Warn("Discarding unreadable cached tag table", "error", err)
		if err := e.Cache.Delete(key); err != nil {
			logger.Error("Failed to delete cached tag table", "error", err)
		}
		return nil, false
	}
	if table == nil {
		table = TagFrequencyTable{}
	}

	return table, true
}

func (e *Extractor) store(key string, table TagFrequencyTable) {
	data, err := json.Marshal(table)
	if err != nil {
		logger.Error("Failed to marshal tag table for cache", "error", err)
		return
	}

	if err := e.Cache.Put(key, data); err != nil {
		logger.Error("Failed to cache tag table", "error", err)
	}
}
