package config

import (
	"github.com/danmuck/protolist/internal/formats"
	"github.com/danmuck/protolist/internal/protocol/envelope"
	"github.com/danmuck/protolist/internal/source"
)

func (s Settings) FormatSettings() formats.Settings {
	return formats.Settings{
		Schema:                 s.FormatSchema,
		UseAutogeneratedSchema: s.UseAutogenerated,
		SchemaPath:             s.FormatSchemaPath,
		FlattenWrappers:        s.FlattenWrappers,
		SkipUnsupported:        s.SkipUnsupported,
		Limits:                 s.Limits(),
	}
}

func (s Settings) Limits() envelope.Limits {
	return envelope.Limits{MaxFrameBytes: s.MaxFrameBytes, MaxDepth: s.MaxDepth}
}

// Codec is the parsed compression setting; invalid values read as Auto
// after Validate has rejected them.
func (s Settings) Codec() source.Codec {
	c, err := source.ParseCodec(s.Compression)
	if err != nil {
		return source.Auto
	}
	return c
}
