package formats

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/protolist/internal/decoder"
	"github.com/danmuck/protolist/internal/inference"
	"github.com/danmuck/protolist/internal/protocol/schema"
)

const (
	ProtobufList   = "ProtobufList"
	Protobuf       = "Protobuf"
	ProtobufSingle = "ProtobufSingle"
)

var (
	ErrFormatExists  = errors.New("format already registered")
	ErrUnknownFormat = errors.New("unknown format")
	ErrInvalidFormat = errors.New("invalid format definition")
	ErrNoSchema      = errors.New("format schema is required")
)

// Format describes how one input format lays rows out in a stream.
type Format struct {
	Name        string
	Description string
	Mode        decoder.Mode
	// Envelope is how the row type is looked up in the schema file.
	Envelope schema.EnvelopeMode
	// SupportsSubsetOfColumns reports whether a destination may name only
	// some of the message fields.
	SupportsSubsetOfColumns bool
}

// Registry stores formats by name and shares one schema cache between them.
type Registry struct {
	items  map[string]Format
	cache  *schema.Cache
	loader schema.Loader
}

// NewRegistry creates an empty registry. A nil cache or loader selects the
// defaults.
func NewRegistry(cache *schema.Cache, loader schema.Loader) *Registry {
	if cache == nil {
		cache = schema.NewCache(0)
	}
	if loader == nil {
		loader = schema.FileLoader{}
	}
	return &Registry{items: make(map[string]Format), cache: cache, loader: loader}
}

// NewDefaultRegistry creates a registry holding the three protobuf formats.
func NewDefaultRegistry(cache *schema.Cache, loader schema.Loader) *Registry {
	r := NewRegistry(cache, loader)
	for _, f := range Defaults() {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

func Defaults() []Format {
	return []Format{
		{
			Name:                    ProtobufList,
			Description:             "length-delimited Envelope frames, one row per envelope row field",
			Mode:                    decoder.ModeEnvelope,
			Envelope:                schema.WithEnvelope,
			SupportsSubsetOfColumns: true,
		},
		{
			Name:                    Protobuf,
			Description:             "one length-delimited message per row",
			Mode:                    decoder.ModeDelimited,
			Envelope:                schema.WithoutEnvelope,
			SupportsSubsetOfColumns: true,
		},
		{
			Name:                    ProtobufSingle,
			Description:             "the whole input is one undelimited message",
			Mode:                    decoder.ModeSingle,
			Envelope:                schema.WithoutEnvelope,
			SupportsSubsetOfColumns: true,
		},
	}
}

func (r *Registry) Register(f Format) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFormat)
	}
	switch f.Mode {
	case decoder.ModeEnvelope:
		if f.Envelope != schema.WithEnvelope {
			return fmt.Errorf("%w: %s reads envelopes but resolves without one", ErrInvalidFormat, f.Name)
		}
	case decoder.ModeDelimited, decoder.ModeSingle:
	default:
		return fmt.Errorf("%w: %s has unknown mode %d", ErrInvalidFormat, f.Name, f.Mode)
	}
	if _, ok := r.items[f.Name]; ok {
		return fmt.Errorf("%w: %s", ErrFormatExists, f.Name)
	}
	r.items[f.Name] = f
	return nil
}

func (r *Registry) Lookup(name string) (Format, bool) {
	f, ok := r.items[name]
	return f, ok
}

// List returns the registered formats ordered by name.
func (r *Registry) List() []Format {
	list := make([]Format, 0, len(r.items))
	for _, f := range r.items {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// MessageType resolves the row type named by s.Schema for the format.
func (r *Registry) MessageType(name string, s Settings) (Format, schema.MessageType, error) {
	return r.messageType(name, s, nil)
}

// messageType resolves s.Schema, or generates the row type from dest when no
// schema is named and s allows it.
func (r *Registry) messageType(name string, s Settings, dest *arrow.Schema) (Format, schema.MessageType, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return Format{}, schema.MessageType{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	resolver := schema.NewResolver(r.cache, r.loader, s.SchemaPath)
	if strings.TrimSpace(s.Schema) == "" {
		if !s.UseAutogeneratedSchema || dest == nil {
			return f, schema.MessageType{}, fmt.Errorf("%w for %s", ErrNoSchema, name)
		}
		mt, err := resolver.Generate(dest, f.Envelope)
		return f, mt, err
	}
	loc, err := schema.ParseLocator(s.Schema)
	if err != nil {
		return f, schema.MessageType{}, err
	}
	mt, err := resolver.Resolve(loc, f.Envelope)
	if err != nil {
		return f, schema.MessageType{}, err
	}
	return f, mt, nil
}

func (r *Registry) NewDecoder(name string, src io.Reader, dest *arrow.Schema, s Settings) (*decoder.Decoder, error) {
	f, mt, err := r.messageType(name, s, dest)
	if err != nil {
		return nil, err
	}
	return decoder.New(src, mt, dest, decoder.Options{
		Mode:            f.Mode,
		FlattenWrappers: s.FlattenWrappers,
		Limits:          s.Limits,
		Format:          f.Name,
	})
}

// NewCounter never inspects row contents, so a generated schema for it needs
// no columns.
func (r *Registry) NewCounter(name string, src io.Reader, s Settings) (*decoder.Counter, error) {
	f, mt, err := r.messageType(name, s, arrow.NewSchema(nil, nil))
	if err != nil {
		return nil, err
	}
	return decoder.NewCounter(src, mt, decoder.Options{
		Mode:   f.Mode,
		Limits: s.Limits,
		Format: f.Name,
	})
}

// ReadSchema is the external schema reader: it infers the destination
// columns from the row type alone, without reading any data.
func (r *Registry) ReadSchema(name string, s Settings) (*arrow.Schema, error) {
	_, mt, err := r.MessageType(name, s)
	if err != nil {
		return nil, err
	}
	sc, err := inference.InferSchema(mt.Descriptor, inference.Options{
		FlattenWrappers: s.FlattenWrappers,
		SkipUnsupported: s.SkipUnsupported,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("format", name).Str("cache_key", CacheKey(s)).Int("columns", sc.NumFields()).Msg("schema inferred")
	return sc, nil
}
