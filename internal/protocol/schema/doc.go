// Package schema resolves format schema locators to message descriptors.
//
// Descriptors are compiled descriptor sets (binary or JSON FileDescriptorSet)
// or types linked into the binary. Resolved types are immutable and shared
// through a Cache that callers create and pass in explicitly.
package schema
