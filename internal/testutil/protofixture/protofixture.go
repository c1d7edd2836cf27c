// Package protofixture builds the descriptors and messages shared by tests.
//
// fixture/people.proto (proto3):
//
//	enum Color { COLOR_UNSPECIFIED = 0; RED = 1; GREEN = 2; }
//	message Address { string city = 1; uint32 zip = 2; }
//	message Envelope {
//	  message Person {
//	    string name = 1;
//	    int32 age = 2;
//	    repeated string tags = 3;
//	    Address address = 4;
//	    Color color = 5;
//	    google.protobuf.Int64Value score = 6;
//	    repeated int64 scores = 7;
//	    map<string, int32> attrs = 8;
//	    double weight = 9;
//	    bool active = 10;
//	    bytes blob = 11;
//	    sint64 delta = 12;
//	    fixed32 code = 13;
//	  }
//	  repeated Person person = 1;
//	}
//	message Node { string name = 1; Node child = 2; }
//	message Empty {}
//	message Holder { string id = 1; Empty nothing = 2; }
//
// fixture/legacy.proto (proto2):
//
//	message Legacy { optional group Item = 1 { optional string v = 2; } optional string note = 3; }
package protofixture

import (
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	Package     = "fixture"
	PeopleFile  = "fixture/people.proto"
	LegacyFile  = "fixture/legacy.proto"
	PersonName  = "fixture.Envelope.Person"
	AddressName = "fixture.Address"
)

// wrappersFile forces the well-known wrappers into the global registry.
var wrappersFile = wrapperspb.File_google_protobuf_wrappers_proto

type label = descriptorpb.FieldDescriptorProto_Label
type kind = descriptorpb.FieldDescriptorProto_Type

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
)

func field(name string, number int32, l label, k kind, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    l.Enum(),
		Type:     k.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

// PeopleFileProto returns the proto3 fixture file.
func PeopleFileProto() *descriptorpb.FileDescriptorProto {
	attrsEntry := message("AttrsEntry",
		field("key", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
		field("value", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
	)
	attrsEntry.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}

	person := message("Person",
		field("name", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
		field("age", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_INT32, ""),
		field("tags", 3, repeated, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
		field("address", 4, optional, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".fixture.Address"),
		field("color", 5, optional, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".fixture.Color"),
		field("score", 6, optional, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".google.protobuf.Int64Value"),
		field("scores", 7, repeated, descriptorpb.FieldDescriptorProto_TYPE_INT64, ""),
		field("attrs", 8, repeated, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".fixture.Envelope.Person.AttrsEntry"),
		field("weight", 9, optional, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, ""),
		field("active", 10, optional, descriptorpb.FieldDescriptorProto_TYPE_BOOL, ""),
		field("blob", 11, optional, descriptorpb.FieldDescriptorProto_TYPE_BYTES, ""),
		field("delta", 12, optional, descriptorpb.FieldDescriptorProto_TYPE_SINT64, ""),
		field("code", 13, optional, descriptorpb.FieldDescriptorProto_TYPE_FIXED32, ""),
	)
	person.NestedType = []*descriptorpb.DescriptorProto{attrsEntry}

	envelope := message("Envelope",
		field("person", 1, repeated, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".fixture.Envelope.Person"),
	)
	envelope.NestedType = []*descriptorpb.DescriptorProto{person}

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(PeopleFile),
		Package:    proto.String(Package),
		Syntax:     proto.String("proto3"),
		Dependency: []string{wrappersFile.Path()},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Color"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("COLOR_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("RED"), Number: proto.Int32(1)},
				{Name: proto.String("GREEN"), Number: proto.Int32(2)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Address",
				field("city", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				field("zip", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_UINT32, ""),
			),
			envelope,
			message("Node",
				field("name", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				field("child", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".fixture.Node"),
			),
			message("Empty"),
			message("Holder",
				field("id", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				field("nothing", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".fixture.Empty"),
			),
		},
	}
}

// LegacyFileProto returns the proto2 fixture file with a group field.
func LegacyFileProto() *descriptorpb.FileDescriptorProto {
	legacy := message("Legacy",
		field("item", 1, optional, descriptorpb.FieldDescriptorProto_TYPE_GROUP, ".fixture.Legacy.Item"),
		field("note", 3, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
	)
	legacy.NestedType = []*descriptorpb.DescriptorProto{
		message("Item", field("v", 2, optional, descriptorpb.FieldDescriptorProto_TYPE_STRING, "")),
	}
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(LegacyFile),
		Package:     proto.String(Package),
		Syntax:      proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{legacy},
	}
}

// FileSet returns both fixture files in dependency order.
func FileSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{PeopleFileProto(), LegacyFileProto()},
	}
}

// Files builds a registry holding the fixture files.
func Files(t testing.TB) *protoregistry.Files {
	t.Helper()
	files := new(protoregistry.Files)
	for _, fdp := range FileSet().GetFile() {
		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			t.Fatalf("build fixture file %s: %v", fdp.GetName(), err)
		}
		if err := files.RegisterFile(fd); err != nil {
			t.Fatalf("register fixture file %s: %v", fdp.GetName(), err)
		}
	}
	return files
}

// Message returns the fixture message with the given full name.
func Message(t testing.TB, fullName string) protoreflect.MessageDescriptor {
	t.Helper()
	d, err := Files(t).FindDescriptorByName(protoreflect.FullName(fullName))
	if err != nil {
		t.Fatalf("find %s: %v", fullName, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		t.Fatalf("%s is not a message", fullName)
	}
	return md
}

// WriteSchema writes the fixture set as a binary descriptor set into dir.
func WriteSchema(t testing.TB, dir, name string) string {
	t.Helper()
	data, err := proto.Marshal(FileSet())
	if err != nil {
		t.Fatalf("marshal fixture set: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture set: %v", err)
	}
	return path
}

// PersonValues describes one fixture row; zero values are left unset.
type PersonValues struct {
	Name   string
	Age    int32
	Tags   []string
	City   string
	Zip    uint32
	Color  int32
	Score  *int64
	Scores []int64
	Attrs  map[string]int32
	Weight float64
	Active bool
	Blob   []byte
	Delta  int64
	Code   uint32
}

// NewPerson builds a dynamic Person message from v.
func NewPerson(md protoreflect.MessageDescriptor, v PersonValues) *dynamicpb.Message {
	m := dynamicpb.NewMessage(md)
	fields := md.Fields()
	set := func(name string, val protoreflect.Value) {
		m.Set(fields.ByName(protoreflect.Name(name)), val)
	}
	if v.Name != "" {
		set("name", protoreflect.ValueOfString(v.Name))
	}
	if v.Age != 0 {
		set("age", protoreflect.ValueOfInt32(v.Age))
	}
	if len(v.Tags) > 0 {
		list := m.Mutable(fields.ByName("tags")).List()
		for _, tag := range v.Tags {
			list.Append(protoreflect.ValueOfString(tag))
		}
	}
	if v.City != "" || v.Zip != 0 {
		addr := m.Mutable(fields.ByName("address")).Message()
		afields := addr.Descriptor().Fields()
		if v.City != "" {
			addr.Set(afields.ByName("city"), protoreflect.ValueOfString(v.City))
		}
		if v.Zip != 0 {
			addr.Set(afields.ByName("zip"), protoreflect.ValueOfUint32(v.Zip))
		}
	}
	if v.Color != 0 {
		set("color", protoreflect.ValueOfEnum(protoreflect.EnumNumber(v.Color)))
	}
	if v.Score != nil {
		score := m.Mutable(fields.ByName("score")).Message()
		score.Set(score.Descriptor().Fields().ByNumber(1), protoreflect.ValueOfInt64(*v.Score))
	}
	if len(v.Scores) > 0 {
		list := m.Mutable(fields.ByName("scores")).List()
		for _, s := range v.Scores {
			list.Append(protoreflect.ValueOfInt64(s))
		}
	}
	if len(v.Attrs) > 0 {
		mp := m.Mutable(fields.ByName("attrs")).Map()
		for k, val := range v.Attrs {
			mp.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfInt32(val))
		}
	}
	if v.Weight != 0 {
		set("weight", protoreflect.ValueOfFloat64(v.Weight))
	}
	if v.Active {
		set("active", protoreflect.ValueOfBool(v.Active))
	}
	if len(v.Blob) > 0 {
		set("blob", protoreflect.ValueOfBytes(v.Blob))
	}
	if v.Delta != 0 {
		set("delta", protoreflect.ValueOfInt64(v.Delta))
	}
	if v.Code != 0 {
		set("code", protoreflect.ValueOfUint32(v.Code))
	}
	return m
}

// Marshal encodes m deterministically.
func Marshal(t testing.TB, m proto.Message) []byte {
	t.Helper()
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
	if err != nil {
		t.Fatalf("marshal %s: %v", m.ProtoReflect().Descriptor().FullName(), err)
	}
	return b
}
