// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

// TextureHandle is an opaque index into a Graph's texture
// resource vector. The zero value, TextureHandleInvalid, is a
// reserved sentinel and never identifies a real resource.
// Handles are only valid within the Graph that produced them
// and are meaningless once that Graph is compiled and
// discarded.
type TextureHandle uint32

// TextureHandleInvalid is the sentinel invalid texture handle.
const TextureHandleInvalid TextureHandle = 0

// Valid reports whether h identifies a real resource.
func (h TextureHandle) Valid() bool { return h != TextureHandleInvalid }

// BufferHandle is an opaque index into a Graph's buffer
// resource vector, with the same sentinel conventions as
// TextureHandle.
type BufferHandle uint32

// BufferHandleInvalid is the sentinel invalid buffer handle.
const BufferHandleInvalid BufferHandle = 0

// Valid reports whether h identifies a real resource.
func (h BufferHandle) Valid() bool { return h != BufferHandleInvalid }
