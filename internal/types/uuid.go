package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex subs_01HZX3K9Q4T5Y8N2M7B6V1C0D
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short upper-case ID with a prefix.
// Total length is capped at maxLen characters, e.g. `PP-XYZ12A8Q`.
func GenerateShortIDWithPrefix(prefix string, maxLen int) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")
	id = strings.ReplaceAll(id, "_", "")

	availableLen := maxLen - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(prefix + id)
}

// GeneratePaymentReference returns a gateway payment reference. The ULID
// suffix keeps references unique even when the short id collides.
func GeneratePaymentReference() string {
	return fmt.Sprintf("%s%s", GenerateShortIDWithPrefix(SHORT_ID_PREFIX_PAYMENT, 10), strings.ToUpper(GenerateUUID()[16:]))
}

const (
	UUID_PREFIX_SUBSCRIPTION     = "subs"
	UUID_PREFIX_RECURRING_CHARGE = "rchg"
	UUID_PREFIX_ADJUSTMENT       = "adj"
	UUID_PREFIX_ORDER            = "ord"
	UUID_PREFIX_AUDIT            = "audit"
	UUID_PREFIX_NOTIFICATION     = "itn"
	UUID_PREFIX_WEBHOOK_EVENT    = "webhook"
)

const (
	SHORT_ID_PREFIX_PAYMENT = "PP-"
)
