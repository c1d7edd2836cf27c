package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/protolist/internal/source"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protolist.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
format = "Protobuf"
format_schema = "people.binpb:Person"
flatten_google_wrappers = true
max_block_size = 128
compression = "zstd"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Format != "Protobuf" {
		t.Fatalf("unexpected format: %q", cfg.Format)
	}
	if cfg.FormatSchema != "people.binpb:Person" {
		t.Fatalf("unexpected schema: %q", cfg.FormatSchema)
	}
	if !cfg.FlattenWrappers {
		t.Fatalf("expected flatten_google_wrappers")
	}
	if cfg.MaxBlockSize != 128 {
		t.Fatalf("unexpected max_block_size: %d", cfg.MaxBlockSize)
	}
	if cfg.MaxDepth != Default().MaxDepth {
		t.Fatalf("max_depth should keep its default, got %d", cfg.MaxDepth)
	}
	if cfg.Codec() != source.Zstd {
		t.Fatalf("unexpected codec: %q", cfg.Codec())
	}

	fs := cfg.FormatSettings()
	if fs.Schema != cfg.FormatSchema || !fs.FlattenWrappers {
		t.Fatalf("format settings not carried over: %+v", fs)
	}
	if fs.Limits.MaxFrameBytes != Default().MaxFrameBytes {
		t.Fatalf("unexpected frame limit: %d", fs.Limits.MaxFrameBytes)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"format":      `format = "CSV"`,
		"block size":  `max_block_size = 0`,
		"depth":       `max_depth = -1`,
		"compression": `compression = "brotli"`,
		"cache":       `schema_cache_entries = -2`,
		"unknown key": `colour = "red"`,
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
}

func TestAutogeneratedSchemaSetting(t *testing.T) {
	cfg, err := Load(writeConfig(t, `format = "ProtobufList"`))
	if err != nil {
		t.Fatalf("load config without schema: %v", err)
	}
	if !cfg.UseAutogenerated || !cfg.FormatSettings().UseAutogeneratedSchema {
		t.Fatalf("use_autogenerated_schema should default on")
	}
	if _, err := Load(writeConfig(t, `use_autogenerated_schema = false`)); err == nil {
		t.Fatalf("expected error without format_schema or generated schema")
	}
	cfg, err = Load(writeConfig(t, "use_autogenerated_schema = false\nformat_schema = \"a.binpb:Row\"\n"))
	if err != nil {
		t.Fatalf("load config with schema: %v", err)
	}
	if cfg.FormatSettings().UseAutogeneratedSchema {
		t.Fatalf("use_autogenerated_schema override lost")
	}
}

func TestValidateRejectsOversizedFrameLimit(t *testing.T) {
	cfg := Default()
	cfg.MaxFrameBytes = math.MaxUint64
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for frame limit above MaxInt64")
	}
	cfg.MaxFrameBytes = math.MaxInt64
	if err := Validate(cfg); err != nil {
		t.Fatalf("MaxInt64 frame limit: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestTemplateLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protolist.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if !strings.Contains(string(data), "format_schema = 'schema.binpb:Person'") &&
		!strings.Contains(string(data), `format_schema = "schema.binpb:Person"`) {
		t.Fatalf("template missing schema example:\n%s", data)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Format != Default().Format {
		t.Fatalf("unexpected format: %q", cfg.Format)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
}
