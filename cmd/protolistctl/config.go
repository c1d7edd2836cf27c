package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/protolist/internal/config"
	"github.com/danmuck/protolist/internal/source"
)

// inputFlags are the flags every reading command accepts. Flags given on the
// command line override the config file.
type inputFlags struct {
	configPath      string
	format          string
	schema          string
	schemaPath      string
	autogen         bool
	flatten         bool
	skipUnsupported bool
	compression     string
	blockSize       int
	cacheEntries    int
	metricsAddr     string
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (f *inputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "protolist.toml to load before flags")
	fs.StringVar(&f.format, "format", "", "ProtobufList | Protobuf | ProtobufSingle")
	fs.StringVar(&f.schema, "schema", "", "format schema locator <file>:<message>")
	fs.StringVar(&f.schemaPath, "schema-path", "", "directory schema files resolve against")
	fs.BoolVar(&f.autogen, "autogen-schema", true, "without -schema, generate the row type from the destination columns")
	fs.BoolVar(&f.flatten, "flatten-wrappers", false, "read google.protobuf.*Value fields as nullable scalars")
	fs.BoolVar(&f.skipUnsupported, "skip-unsupported", false, "omit fields with no column representation when inferring")
	fs.StringVar(&f.compression, "compression", "", codecUsage())
	fs.IntVar(&f.blockSize, "block-size", 0, "rows per decoded batch")
	fs.IntVar(&f.cacheEntries, "schema-cache-entries", 0, "bound on cached schemas, 0 keeps all")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}

// settings resolves the effective settings: defaults, then the config file,
// then the flags that were set explicitly.
func (f *inputFlags) settings(fs *flag.FlagSet) (config.Settings, error) {
	cfg := config.Default()
	if strings.TrimSpace(f.configPath) != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Settings{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "format":
			cfg.Format = strings.TrimSpace(f.format)
		case "schema":
			cfg.FormatSchema = strings.TrimSpace(f.schema)
		case "schema-path":
			cfg.FormatSchemaPath = strings.TrimSpace(f.schemaPath)
		case "autogen-schema":
			cfg.UseAutogenerated = f.autogen
		case "flatten-wrappers":
			cfg.FlattenWrappers = f.flatten
		case "skip-unsupported":
			cfg.SkipUnsupported = f.skipUnsupported
		case "compression":
			cfg.Compression = strings.TrimSpace(f.compression)
		case "block-size":
			cfg.MaxBlockSize = f.blockSize
		case "schema-cache-entries":
			cfg.SchemaCacheEntries = f.cacheEntries
		}
	})
	if err := config.Validate(cfg); err != nil {
		return config.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func codecUsage() string {
	names := make([]string, 0, len(source.Codecs()))
	for _, c := range source.Codecs() {
		names = append(names, string(c))
	}
	return strings.Join(names, " | ")
}
