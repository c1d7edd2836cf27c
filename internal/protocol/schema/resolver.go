package schema

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/danmuck/protolist/internal/protocol"
)

// EnvelopeName is the message that wraps rows in envelope mode.
const EnvelopeName = "Envelope"

type EnvelopeMode int

const (
	WithoutEnvelope EnvelopeMode = iota
	WithEnvelope
)

func (m EnvelopeMode) String() string {
	if m == WithEnvelope {
		return "envelope"
	}
	return "plain"
}

// MessageType is a resolved row message type. Envelope and RowField are set
// only in envelope mode: each occurrence of RowField in an Envelope frame is
// one row.
type MessageType struct {
	Descriptor protoreflect.MessageDescriptor
	Envelope   protoreflect.MessageDescriptor
	RowField   protowire.Number
}

func (mt MessageType) HasEnvelope() bool {
	return mt.Envelope != nil
}

// Resolver maps locators to message types through a shared Cache.
type Resolver struct {
	cache     *Cache
	loader    Loader
	schemaDir string
}

func NewResolver(cache *Cache, loader Loader, schemaDir string) *Resolver {
	if cache == nil {
		cache = NewCache(0)
	}
	if loader == nil {
		loader = FileLoader{}
	}
	return &Resolver{cache: cache, loader: loader, schemaDir: schemaDir}
}

func (r *Resolver) Resolve(loc Locator, mode EnvelopeMode) (MessageType, error) {
	path := r.path(loc)
	key := fmt.Sprintf("%s:%s|%s", path, loc.Message, mode)
	return r.cache.GetOrLoad(key, func() (MessageType, error) {
		log.Debug().Str("locator", loc.String()).Str("mode", mode.String()).Msg("schema.Resolve load")
		files, err := r.files(loc, path)
		if err != nil {
			return MessageType{}, err
		}
		mt, err := lookup(files, loc, mode)
		if err != nil {
			log.Error().Err(err).Str("locator", loc.String()).Msg("schema.Resolve failed")
			return MessageType{}, err
		}
		log.Debug().Str("locator", loc.String()).Str("message", string(mt.Descriptor.FullName())).Msg("schema.Resolve ok")
		return mt, nil
	})
}

func (r *Resolver) path(loc Locator) string {
	if loc.IsRegistry() {
		return RegistryFile
	}
	path := loc.File
	if r.schemaDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.schemaDir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

func (r *Resolver) files(loc Locator, path string) (*protoregistry.Files, error) {
	if loc.IsRegistry() {
		return protoregistry.GlobalFiles, nil
	}
	files, err := r.loader.Load(path)
	if err != nil {
		return nil, &protocol.SchemaResolutionError{Locator: loc.String(), Reason: "load schema file", Err: err}
	}
	return files, nil
}

func lookup(files *protoregistry.Files, loc Locator, mode EnvelopeMode) (MessageType, error) {
	if mode == WithoutEnvelope {
		md, err := findMessage(files, loc.Message)
		if err != nil {
			return MessageType{}, &protocol.SchemaResolutionError{Locator: loc.String(), Reason: err.Error()}
		}
		return MessageType{Descriptor: md}, nil
	}

	md, err := findMessage(files, EnvelopeName+"."+loc.Message)
	if err != nil {
		return MessageType{}, &protocol.SchemaResolutionError{
			Locator: loc.String(),
			Reason:  fmt.Sprintf("message %q must be nested in a message named %s: %v", loc.Message, EnvelopeName, err),
		}
	}
	env, ok := md.Parent().(protoreflect.MessageDescriptor)
	if !ok {
		return MessageType{}, &protocol.SchemaResolutionError{Locator: loc.String(), Reason: "row message has no enclosing envelope"}
	}
	field, err := envelopeField(env, md)
	if err != nil {
		return MessageType{}, &protocol.SchemaResolutionError{Locator: loc.String(), Reason: err.Error()}
	}
	return MessageType{Descriptor: md, Envelope: env, RowField: field.Number()}, nil
}

// envelopeField enforces one envelope tag per row: the envelope declares
// exactly one field, repeated, and it carries the row type.
func envelopeField(env, row protoreflect.MessageDescriptor) (protoreflect.FieldDescriptor, error) {
	fields := env.Fields()
	if fields.Len() != 1 {
		return nil, fmt.Errorf("envelope %s must declare exactly one field, found %d", env.FullName(), fields.Len())
	}
	fd := fields.Get(0)
	if fd.Kind() != protoreflect.MessageKind || fd.Message().FullName() != row.FullName() {
		return nil, fmt.Errorf("envelope field %s must have type %s", fd.FullName(), row.FullName())
	}
	if fd.Cardinality() != protoreflect.Repeated {
		return nil, fmt.Errorf("envelope field %s must be repeated", fd.FullName())
	}
	return fd, nil
}

// findMessage looks name up as a full name first and then as a unique suffix
// of a full name, so package prefixes may be omitted.
func findMessage(files *protoregistry.Files, name string) (protoreflect.MessageDescriptor, error) {
	name = strings.TrimPrefix(name, ".")
	if d, err := files.FindDescriptorByName(protoreflect.FullName(name)); err == nil {
		if md, ok := d.(protoreflect.MessageDescriptor); ok {
			return md, nil
		}
		return nil, fmt.Errorf("%s is not a message", name)
	}

	suffix := "." + name
	var found []protoreflect.MessageDescriptor
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		walkMessages(fd.Messages(), func(md protoreflect.MessageDescriptor) {
			if strings.HasSuffix(string(md.FullName()), suffix) {
				found = append(found, md)
			}
		})
		return true
	})
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("message %s not found", name)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("message name %s is ambiguous (%s, %s)", name, found[0].FullName(), found[1].FullName())
	}
}

func walkMessages(mds protoreflect.MessageDescriptors, fn func(protoreflect.MessageDescriptor)) {
	for i := 0; i < mds.Len(); i++ {
		md := mds.Get(i)
		if md.IsMapEntry() {
			continue
		}
		fn(md)
		walkMessages(md.Messages(), fn)
	}
}
