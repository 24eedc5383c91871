// Package xid generates time-ordered, human-scannable ids for KOTs and
// order aggregates. Ids sort by creation time within a terminal, which the
// pending views rely on.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form PREFIX-<unixnano>-<4 random bytes hex>.
func New(prefix string) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
