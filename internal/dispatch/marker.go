package dispatch

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
)

// The shell echoes the expression, not its value, so the sum only shows up
// once the command before it has finished.
const (
	markerAddendA int64 = 7431985260417
	markerAddendB int64 = 2938475610293
)

var markerSeq atomic.Int64

// ShellMarker returns the command suffix to append to an ssh command and the
// string its completion prints. Every call yields a different sum, so a late
// reply to an abandoned command never completes another one.
func ShellMarker() (suffix, marker string) {
	b := markerAddendB + markerSeq.Add(1)
	return fmt.Sprintf("echo $((%d+%d))", markerAddendA, b),
		strconv.FormatInt(markerAddendA+b, 10)
}

var keySeq atomic.Uint64

// newKey derives a correlation key from the command text and the current
// time. The sequence number keeps keys distinct within one clock tick.
func newKey(command string) string {
	msg := fmt.Sprintf("%s\x00%d\x00%d", command, time.Now().UnixNano(), keySeq.Add(1))
	sum := blake2b.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:])
}
