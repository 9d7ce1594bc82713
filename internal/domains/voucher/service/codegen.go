package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"pharmacy-backend/internal/domains/voucher/repository"
)

// codeCharset - uppercase letters and digits, the shape customers can
// read over the phone. Collision avoidance only, not secrecy.
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator produces fresh voucher codes, retrying on collision.
type CodeGenerator struct {
	repo     repository.VoucherRepository
	maxRetry int
}

// NewCodeGenerator creates a new instance
func NewCodeGenerator(repo repository.VoucherRepository, maxRetry int) *CodeGenerator {
	if maxRetry < 1 {
		maxRetry = 10
	}
	return &CodeGenerator{
		repo:     repo,
		maxRetry: maxRetry,
	}
}

// Generate returns prefix + length random charset characters, not yet
// present as a voucher code. With 36^8 combinations collisions are
// rare; the retry loop still gives up eventually instead of spinning.
func (g *CodeGenerator) Generate(ctx context.Context, length int, prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))

	for attempt := 0; attempt < g.maxRetry; attempt++ {
		code := prefix + randomCode(length)

		exists, err := g.repo.CheckCodeExists(ctx, code, nil)
		if err != nil {
			return "", fmt.Errorf("check code collision: %w", err)
		}

		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("could not generate unique code after %d attempts", g.maxRetry)
}

func randomCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(b)
}
