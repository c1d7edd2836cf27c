// Package protocol owns the wire contract shared by the protolist decoder.
//
// Ownership boundary:
// - envelope framing primitives (package envelope)
// - schema resolution and the descriptor cache (package schema)
// - the error taxonomy every layer reports through
package protocol
