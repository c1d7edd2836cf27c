package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/protolist/internal/config"
	"github.com/danmuck/protolist/internal/formats"
	"github.com/danmuck/protolist/internal/protocol/schema"
	"github.com/danmuck/protolist/internal/source"
)

func newRegistry(cfg config.Settings) *formats.Registry {
	return formats.NewDefaultRegistry(schema.NewCache(cfg.SchemaCacheEntries), nil)
}

func runInfer(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("infer", stderr)
	var in inputFlags
	in.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := in.settings(fs)
	if err != nil {
		return err
	}

	sc, err := newRegistry(cfg).ReadSchema(cfg.Format, cfg.FormatSettings())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "# %s\n", formats.CacheKey(cfg.FormatSettings()))
	for _, f := range sc.Fields() {
		null := ""
		if f.Nullable {
			null = " nullable"
		}
		fmt.Fprintf(stdout, "%s\t%s%s\n", f.Name, f.Type, null)
	}
	return nil
}

func runCount(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("count", stderr)
	var in inputFlags
	in.register(fs)
	input := fs.String("input", source.Stdin, "input file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := in.settings(fs)
	if err != nil {
		return err
	}
	serveMetrics(in.metricsAddr)

	src, err := source.Open(*input, cfg.Codec())
	if err != nil {
		return err
	}
	defer src.Close()

	counter, err := newRegistry(cfg).NewCounter(cfg.Format, src, cfg.FormatSettings())
	if err != nil {
		return err
	}
	for {
		n, err := counter.CountRows(cfg.MaxBlockSize)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}
	log.Info().Str("input", *input).Int64("rows", counter.Total()).Msg("count complete")
	fmt.Fprintln(stdout, counter.Total())
	return nil
}

func runDecode(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("decode", stderr)
	var in inputFlags
	in.register(fs)
	input := fs.String("input", source.Stdin, "input file, - for stdin")
	output := fs.String("output", "-", "output file, - for stdout")
	outFormat := fs.String("out-format", "jsonl", "jsonl | arrow")
	columns := fs.String("columns", "", "comma separated subset of the destination columns")
	structure := fs.String("structure", "", "destination columns as name:type pairs, e.g. id:int64,tags:[]string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := in.settings(fs)
	if err != nil {
		return err
	}
	serveMetrics(in.metricsAddr)

	reg := newRegistry(cfg)
	sc, err := destination(reg, cfg, *structure)
	if err != nil {
		return err
	}
	if sc, err = selectColumns(sc, *columns); err != nil {
		return err
	}

	src, err := source.Open(*input, cfg.Codec())
	if err != nil {
		return err
	}
	defer src.Close()

	dec, err := reg.NewDecoder(cfg.Format, src, sc, cfg.FormatSettings())
	if err != nil {
		return err
	}

	out := stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	sink, err := newSink(*outFormat, out, sc)
	if err != nil {
		return err
	}

	for {
		batch, err := dec.ReadBatch(cfg.MaxBlockSize)
		if err != nil {
			sink.Close()
			return err
		}
		if batch == nil {
			break
		}
		err = sink.Write(batch.Record)
		batch.Release()
		if err != nil {
			sink.Close()
			return err
		}
	}
	log.Info().Str("input", *input).Int64("rows", dec.RowsRead()).Ints("missing", dec.Missing()).Msg("decode complete")
	return sink.Close()
}

// destination is the -structure columns when given, otherwise the columns
// inferred from the format schema.
func destination(reg *formats.Registry, cfg config.Settings, structure string) (*arrow.Schema, error) {
	if strings.TrimSpace(structure) != "" {
		return parseStructure(structure)
	}
	if cfg.FormatSchema == "" {
		return nil, fmt.Errorf("%w: pass -schema, or -structure to generate one", formats.ErrNoSchema)
	}
	return reg.ReadSchema(cfg.Format, cfg.FormatSettings())
}

func selectColumns(sc *arrow.Schema, list string) (*arrow.Schema, error) {
	if strings.TrimSpace(list) == "" {
		return sc, nil
	}
	var fields []arrow.Field
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		found, ok := sc.FieldsByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		fields = append(fields, found[0])
	}
	return arrow.NewSchema(fields, nil), nil
}

type recordSink interface {
	Write(rec arrow.Record) error
	Close() error
}

func newSink(kind string, w io.Writer, sc *arrow.Schema) (recordSink, error) {
	switch kind {
	case "jsonl", "json":
		return jsonSink{w: w}, nil
	case "arrow", "ipc":
		fw, err := ipc.NewFileWriter(w, ipc.WithSchema(sc))
		if err != nil {
			return nil, err
		}
		return fw, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", kind)
	}
}

type jsonSink struct{ w io.Writer }

func (s jsonSink) Write(rec arrow.Record) error { return array.RecordToJSON(rec, s.w) }
func (s jsonSink) Close() error                 { return nil }

func runConfigGen(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("configgen", stderr)
	output := fs.String("output", "protolist.toml", "output path for the config template")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.String("input", "protolist.toml", "config path for validation")
	force := fs.Bool("force", false, "overwrite existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *validate {
		if _, err := config.Load(*input); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "validated config at %s\n", *input)
		return nil
	}
	if err := config.WriteTemplate(*output, *force); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote config template to %s\n", *output)
	return nil
}
