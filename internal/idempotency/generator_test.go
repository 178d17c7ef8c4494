package idempotency

import (
	"strings"
	"testing"
	"time"

	"github.com/petalpost/petalpost/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestGenerator_CycleInvoiceID(t *testing.T) {
	g := NewGenerator()
	oct := types.CycleMonth{Year: 2024, Month: time.October}

	a := g.CycleInvoiceID("subs_1", oct)
	b := g.CycleInvoiceID("subs_1", oct)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, string(ScopeCycleInvoice)+"_"))

	assert.NotEqual(t, a, g.CycleInvoiceID("subs_1", oct.Next()))
	assert.NotEqual(t, a, g.CycleInvoiceID("subs_2", oct))
}

func TestGenerator_TopupInvoiceID(t *testing.T) {
	g := NewGenerator()
	oct := types.CycleMonth{Year: 2024, Month: time.October}

	a := g.TopupInvoiceID("subs_1", oct)
	b := g.TopupInvoiceID("subs_1", oct)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, g.CycleInvoiceID("subs_1", oct))
}
