package schema

import (
	"strings"

	"github.com/danmuck/protolist/internal/protocol"
)

// RegistryFile is the locator file name that selects types linked into the binary.
const RegistryFile = "registry"

// Locator names a message type inside a schema file, written "file:Message".
type Locator struct {
	File    string
	Message string
}

func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, &protocol.SchemaResolutionError{Locator: raw, Reason: "format schema is empty"}
	}
	idx := strings.LastIndex(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return Locator{}, &protocol.SchemaResolutionError{Locator: raw, Reason: "expected <file>:<message>"}
	}
	loc := Locator{
		File:    strings.TrimSpace(raw[:idx]),
		Message: strings.TrimSpace(raw[idx+1:]),
	}
	if loc.File == "" || loc.Message == "" {
		return Locator{}, &protocol.SchemaResolutionError{Locator: raw, Reason: "expected <file>:<message>"}
	}
	return loc, nil
}

func (l Locator) String() string {
	return l.File + ":" + l.Message
}

func (l Locator) IsRegistry() bool {
	return l.File == RegistryFile
}
