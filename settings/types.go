package settings

import (
	"comfynodes/logger"
)

type (
	Config struct {
		Loras      LorasConfig      `toml:"loras" validate:"required"`
		Attributes AttributesConfig `toml:"attributes"`
		Cache      CacheConfig      `toml:"cache"`
		Server     ServerConfig     `toml:"server"`
		Logging    logger.Config    `toml:"logging" validate:"required"`
	}

	// LorasConfig points at the host's LoRA directory.
	LorasConfig struct {
		Path            string `toml:"path" validate:"required"`
		DefaultPercent  int    `toml:"defaultPercent" validate:"gte=1,lte=100"`
		ScanConcurrency int    `toml:"scanConcurrency" validate:"gte=0"`
	}

	// AttributesConfig holds the weighted attributes formatter defaults.
	AttributesConfig struct {
		LowWeightMax    float64 `toml:"lowWeightMax" validate:"gte=0,ltfield=MediumWeightMax"`
		MediumWeightMax float64 `toml:"mediumWeightMax" validate:"gte=0,lt=1"`
		Separator       string  `toml:"separator"`
	}

	CacheConfig struct {
		Enabled     bool   `toml:"enabled"`
		Path        string `toml:"path" validate:"required_if=Enabled true"`
		ExpireHours int    `toml:"expireHours" validate:"gte=0"`
		HotEntries  int    `toml:"hotEntries" validate:"gte=0"`
		MergeHours  int    `toml:"mergeHours" validate:"gte=0"`
	}

	ServerConfig struct {
		Addr string `toml:"addr" validate:"omitempty,hostname_port"`
		Mode string `toml:"mode" validate:"omitempty,oneof=debug release test"`
	}
)
