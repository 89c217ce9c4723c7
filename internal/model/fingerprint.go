package model

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Fingerprint returns a stable identity for the finding that ignores its
// measured values, so the same leak or hotspot can be matched across runs.
func (f Finding) Fingerprint() string {
	var parts []string
	switch {
	case f.Leak != nil:
		parts = append([]string{string(KindMemory), string(f.Leak.LeakKind), f.Leak.AllocationSite}, f.Leak.Backtrace...)
	case f.Hotspot != nil:
		parts = []string{string(KindCPU), f.Hotspot.Module, f.Hotspot.Symbol}
	case f.Cache != nil:
		parts = []string{string(KindCache), f.Cache.Level}
	case f.Syscall != nil:
		parts = []string{string(KindSyscall), f.Syscall.Name}
	case f.Thread != nil:
		parts = []string{string(KindThread), string(f.Thread.Kind), f.Thread.LockID}
		for _, id := range f.Thread.ThreadIDs {
			parts = append(parts, strconv.Itoa(id))
		}
	default:
		return ""
	}

	sum := sha3.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}
