package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/petalpost/petalpost/internal/types"
)

// Scope represents the scope of idempotency
type Scope string

const (
	// ScopeCycleInvoice identifies the single base invoice of a subscription cycle
	ScopeCycleInvoice Scope = "cycinv"
	// ScopeTopupInvoice identifies a supplementary invoice. Callers add a
	// nonce so several top-ups may exist per cycle.
	ScopeTopupInvoice Scope = "topinv"
)

// Generator generates idempotency keys
type Generator struct{}

// NewGenerator creates a new idempotency key generator
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey generates an idempotency key from a scope and parameters
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	// Sort params for consistent hashing
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s_%s", scope, hex.EncodeToString(hash[:12]))
}

// CycleInvoiceID is the deterministic id of the cycle invoice for
// (subscription, cycle month). Concurrent creators collide on it.
func (g *Generator) CycleInvoiceID(subscriptionID string, cycle types.CycleMonth) string {
	return g.GenerateKey(ScopeCycleInvoice, map[string]interface{}{
		"subscription_id": subscriptionID,
		"cycle_month":     cycle.String(),
	})
}

// TopupInvoiceID derives a top-up id from the cycle plus a random nonce
func (g *Generator) TopupInvoiceID(subscriptionID string, cycle types.CycleMonth) string {
	return g.GenerateKey(ScopeTopupInvoice, map[string]interface{}{
		"subscription_id": subscriptionID,
		"cycle_month":     cycle.String(),
		"type":            types.InvoiceTypeTopup,
		"nonce":           types.GenerateUUID(),
	})
}
