// Package matchid generates sortable match identifiers: a UUIDv7 rendered as
// 26 lowercase Crockford base32 characters.
package matchid

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length is the number of characters in every id.
const Length = 26

// Generator produces match ids. The zero value reads from crypto/rand.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a generator drawing randomness from r. A nil r uses
// crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// New returns a fresh id from the default generator.
func New() string {
	return (&Generator{}).Generate()
}

// Generate returns a new id. Ids generated later sort after earlier ones.
func (g *Generator) Generate() string {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand != nil {
		id, err = uuid.NewV7FromReader(g.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		panic("matchid: failed to read random bytes: " + err.Error())
	}
	return encode(id)
}

// encode renders 128 bits as 26 five-bit groups, most significant first.
// The final group carries the two trailing bits of the input.
func encode(data uuid.UUID) string {
	var b strings.Builder
	b.Grow(Length)
	for i := range Length {
		bit := i * 5
		idx, shift := bit/8, bit%8

		var v byte
		if shift <= 3 {
			v = data[idx] >> (3 - shift)
		} else {
			v = data[idx] << (shift - 3)
			if idx+1 < len(data) {
				v |= data[idx+1] >> (11 - shift)
			}
		}
		b.WriteByte(alphabet[v&0x1f])
	}
	return b.String()
}

// Validate reports whether id could have come from Generate.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("match id must be %d characters, got %d", Length, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("match id must start with 0-7, got %c", id[0])
	}
	for i, c := range id {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %c at position %d", c, i)
		}
	}
	return nil
}
