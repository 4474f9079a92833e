// services/code_generator.go
package services

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	codeAlphabet         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultCodeLength    = 8
	maxAttemptsPerLength = 16
	codeLengthStep       = 2
	maxCodeLengthGrowth  = 8
)

// CodeGenerator produces candidate codes that are not yet taken. The
// candidate space grows with the length once a length keeps colliding.
type CodeGenerator struct {
	Length int
	// Random returns an uppercase alphanumeric string of length n.
	Random func(n int) (string, error)
}

func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{Length: length, Random: randomCode}
}

// Generate returns a candidate for which exists reported false. Returns
// ErrCodeSpaceExhausted once every length is used up.
func (g *CodeGenerator) Generate(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	random := g.Random
	if random == nil {
		random = randomCode
	}
	base := g.Length
	if base <= 0 {
		base = DefaultCodeLength
	}

	for length := base; length <= base+maxCodeLengthGrowth; length += codeLengthStep {
		for attempt := 0; attempt < maxAttemptsPerLength; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			code, err := random(length)
			if err != nil {
				return "", err
			}
			code = strings.ToUpper(code)
			taken, err := exists(ctx, code)
			if err != nil {
				return "", err
			}
			if !taken {
				return code, nil
			}
		}
	}
	return "", ErrCodeSpaceExhausted
}

func randomCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
