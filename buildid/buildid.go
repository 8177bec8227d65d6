// Package buildid generates per-object build identifiers, which main.go
// embeds in every object file it writes (see objfile.WithBuildID).
//
// New is storage/fast_uuid.go's newUUID verbatim in approach: a
// monotonic counter mixed with the current time, not crypto/rand,
// because a build ID only needs to be distinct across objects produced
// by one process, not cryptographically unpredictable, and this avoids
// a startup stall on systems with poor entropy availability.
package buildid

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var counter uint64 = uint64(time.Now().UnixNano())

// New returns a fresh, process-unique build identifier.
func New() uuid.UUID {
	ctr := atomic.AddUint64(&counter, 1)
	now := uint64(time.Now().UnixNano())
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], ctr)
	binary.LittleEndian.PutUint64(b[8:16], ctr^now^(now<<17))
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return uuid.UUID(b)
}
