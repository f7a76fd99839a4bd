package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/openclaw/pairing-server-go/internal/util"
)

// CodeGenerator draws fixed-length pairing codes uniformly from the
// restricted alphabet. Guessing is the primary attack on the handshake, so
// the source must be crypto/rand, never math/rand.
type CodeGenerator struct {
	rand io.Reader
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{rand: rand.Reader}
}

func (g *CodeGenerator) Generate() (string, error) {
	chars := []byte(util.CodeAlphabet)
	code := make([]byte, util.CodeLength)

	for i := range code {
		n, err := rand.Int(g.rand, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", fmt.Errorf("draw code symbol: %w", err)
		}
		code[i] = chars[n.Int64()]
	}

	return string(code), nil
}
