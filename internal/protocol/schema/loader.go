package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Loader turns a schema file into a registry of file descriptors.
type Loader interface {
	Load(path string) (*protoregistry.Files, error)
}

// FileLoader reads compiled FileDescriptorSets. JSON sets are selected by the
// .json extension, everything else is read as binary. Imports missing from
// the set are resolved against the types linked into the binary.
type FileLoader struct{}

func (FileLoader) Load(path string) (*protoregistry.Files, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".proto" {
		return nil, fmt.Errorf("%s is proto source; compile it with protoc --include_imports --descriptor_set_out or buf build -o", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := &descriptorpb.FileDescriptorSet{}
	if ext == ".json" {
		err = protojson.Unmarshal(data, set)
	} else {
		err = proto.Unmarshal(data, set)
	}
	if err != nil {
		return nil, fmt.Errorf("parse descriptor set: %w", err)
	}
	return NewFiles(set)
}

// NewFiles builds a registry from set, in file order.
func NewFiles(set *descriptorpb.FileDescriptorSet) (*protoregistry.Files, error) {
	files := new(protoregistry.Files)
	deps := fallbackResolver{files, protoregistry.GlobalFiles}
	for _, fdp := range set.GetFile() {
		fd, err := protodesc.NewFile(fdp, deps)
		if err != nil {
			return nil, fmt.Errorf("build file %q: %w", fdp.GetName(), err)
		}
		if err := files.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("register file %q: %w", fdp.GetName(), err)
		}
	}
	return files, nil
}

type fallbackResolver []*protoregistry.Files

func (r fallbackResolver) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	for _, files := range r {
		if fd, err := files.FindFileByPath(path); err == nil {
			return fd, nil
		}
	}
	return nil, protoregistry.NotFound
}

func (r fallbackResolver) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	for _, files := range r {
		if d, err := files.FindDescriptorByName(name); err == nil {
			return d, nil
		}
	}
	return nil, protoregistry.NotFound
}
