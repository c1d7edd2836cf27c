// Package decoder turns envelope frames into rows of Arrow columns.
//
// Bind compiles a message descriptor against a destination schema once; the
// compiled rules are a closed set of variants (scalar, enum, message,
// repeated, wrapper) walked per row. Decoder appends one row per row message,
// Counter advances over the same frame boundaries without decoding.
package decoder
