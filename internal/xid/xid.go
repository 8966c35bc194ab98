package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Transaction returns a time-derived transaction id such as
// TXN1705314600000-3f9a1c. The suffix keeps ids unique within a millisecond.
func Transaction(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("TXN%d-%s", at.UnixMilli(), suffix)
}
