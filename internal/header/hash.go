package header

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"

	"github.com/mr-tron/base58"
)

// DocumentIDLength is the number of hash bytes printed as the document ID.
const DocumentIDLength = 6

// IdentifierLength is the number of hash bytes used as a document identifier.
const IdentifierLength = 4

// HashLength is the length of a document hash.
const HashLength = sha512.Size

// Identifier is a short hash prefix binding payload chunks to one document.
// It is a fast filter only; collisions between documents are possible.
type Identifier [IdentifierLength]byte

// String returns the identifier in hex.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// Hash is the SHA-512 digest of a document's content followed by the build tag.
type Hash [HashLength]byte

// Identifier returns the hash prefix used in payload headers.
func (h Hash) Identifier() Identifier {
	var id Identifier
	copy(id[:], h[:IdentifierLength])
	return id
}

// HasIdentifier reports whether id is a prefix of h.
func (h Hash) HasIdentifier(id Identifier) bool {
	return bytes.HasPrefix(h[:], id[:])
}

// DocumentID returns the base58 label printed on every page of the document.
func (h Hash) DocumentID() string {
	return base58.Encode(h[:DocumentIDLength])
}

// String returns the hash in hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashDocument hashes data followed by tag. The tag identifies the build that
// produced the document so identical files from different releases do not
// silently share an identifier.
func HashDocument(data []byte, tag string) Hash {
	d := sha512.New()
	d.Write(data)
	d.Write([]byte(tag))
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}
