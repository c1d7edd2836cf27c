// Package formats registers the protobuf input formats and builds decoders,
// counters and external schema readers for them from user settings.
package formats
