// Package vertex defines the opaque commit identifier the changelog maps to
// and from dense integer Ids. A Vertex is typically a 20-byte cryptographic
// hash but is treated as an arbitrary byte string throughout the core.
package vertex

import "encoding/hex"

// Vertex is an opaque commit identifier, usually a cryptographic hash.
type Vertex []byte

// Hex renders the vertex as lowercase hex, the encoding the IdMap Store's
// prefix index is keyed on.
func (v Vertex) Hex() string {
	return hex.EncodeToString(v)
}

func (v Vertex) String() string {
	return v.Hex()
}

// Equal reports whether v and other identify the same commit.
func (v Vertex) Equal(other Vertex) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of v, so callers can hold a Vertex past
// the lifetime of a buffer it was sliced from.
func (v Vertex) Clone() Vertex {
	out := make(Vertex, len(v))
	copy(out, v)
	return out
}

// FromHex decodes a hex string into a Vertex.
func FromHex(s string) (Vertex, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Vertex(b), nil
}
