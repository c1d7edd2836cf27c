package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/protolist/internal/formats"
	"github.com/danmuck/protolist/internal/protocol/envelope"
	"github.com/danmuck/protolist/internal/source"
)

// Settings maps protolist.toml keys to input options.
type Settings struct {
	Format             string `toml:"format" comment:"ProtobufList | Protobuf | ProtobufSingle"`
	FormatSchema       string `toml:"format_schema" comment:"<descriptor set file>:<message>, or registry:<full message name>"`
	FormatSchemaPath   string `toml:"format_schema_path" comment:"directory relative schema files resolve against"`
	UseAutogenerated   bool   `toml:"use_autogenerated_schema" comment:"without format_schema, generate the row type from the destination columns"`
	FlattenWrappers    bool   `toml:"flatten_google_wrappers" comment:"read google.protobuf.*Value fields as nullable scalars"`
	SkipUnsupported    bool   `toml:"skip_fields_with_unsupported_types_in_schema_inference"`
	MaxBlockSize       int    `toml:"max_block_size" comment:"rows per decoded batch"`
	MaxFrameBytes      uint64 `toml:"max_frame_bytes"`
	MaxDepth           int    `toml:"max_depth"`
	Compression        string `toml:"compression" comment:"auto | none | gzip | zstd | snappy | lz4"`
	SchemaCacheEntries int    `toml:"schema_cache_entries" comment:"0 keeps every resolved schema"`
}

func Default() Settings {
	limits := envelope.DefaultLimits()
	return Settings{
		Format:           formats.ProtobufList,
		UseAutogenerated: true,
		MaxBlockSize:     65409,
		MaxFrameBytes:    limits.MaxFrameBytes,
		MaxDepth:         limits.MaxDepth,
		Compression:      string(source.Auto),
	}
}

// Load overlays the keys defined in path on Default and validates the result.
func Load(path string) (Settings, error) {
	cfg := Default()

	var raw Settings
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load protolist config: %w", err)
	}

	if meta.IsDefined("format") {
		cfg.Format = strings.TrimSpace(raw.Format)
	}
	if meta.IsDefined("format_schema") {
		cfg.FormatSchema = strings.TrimSpace(raw.FormatSchema)
	}
	if meta.IsDefined("format_schema_path") {
		cfg.FormatSchemaPath = strings.TrimSpace(raw.FormatSchemaPath)
	}
	if meta.IsDefined("use_autogenerated_schema") {
		cfg.UseAutogenerated = raw.UseAutogenerated
	}
	if meta.IsDefined("flatten_google_wrappers") {
		cfg.FlattenWrappers = raw.FlattenWrappers
	}
	if meta.IsDefined("skip_fields_with_unsupported_types_in_schema_inference") {
		cfg.SkipUnsupported = raw.SkipUnsupported
	}
	if meta.IsDefined("max_block_size") {
		cfg.MaxBlockSize = raw.MaxBlockSize
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("max_depth") {
		cfg.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("compression") {
		cfg.Compression = strings.TrimSpace(raw.Compression)
	}
	if meta.IsDefined("schema_cache_entries") {
		cfg.SchemaCacheEntries = raw.SchemaCacheEntries
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("load protolist config: unknown key %q", undecoded[0].String())
	}

	if err := Validate(cfg); err != nil {
		return Settings{}, fmt.Errorf("load protolist config: %w", err)
	}
	return cfg, nil
}

func Validate(cfg Settings) error {
	known := false
	for _, f := range formats.Defaults() {
		if f.Name == cfg.Format {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown format %q", cfg.Format)
	}
	if cfg.FormatSchema == "" && !cfg.UseAutogenerated {
		return fmt.Errorf("format_schema is required when use_autogenerated_schema is off")
	}
	if cfg.MaxBlockSize <= 0 {
		return fmt.Errorf("max_block_size must be positive")
	}
	if cfg.MaxFrameBytes == 0 {
		return fmt.Errorf("max_frame_bytes must be positive")
	}
	if cfg.MaxFrameBytes > math.MaxInt64 {
		return fmt.Errorf("max_frame_bytes must not exceed %d", int64(math.MaxInt64))
	}
	if cfg.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive")
	}
	if cfg.SchemaCacheEntries < 0 {
		return fmt.Errorf("schema_cache_entries must not be negative")
	}
	if _, err := source.ParseCodec(cfg.Compression); err != nil {
		return err
	}
	return nil
}
