package model

import (
	"fmt"
	"strings"
)

// Kind identifies an analysis family.
type Kind string

const (
	// KindMemory is leak analysis with valgrind memcheck.
	KindMemory Kind = "memory"
	// KindCPU is sampling-based hotspot analysis with perf.
	KindCPU Kind = "cpu"
	// KindCache is hardware counter analysis with perf stat.
	KindCache Kind = "cache"
	// KindSyscall is syscall overhead analysis with strace.
	KindSyscall Kind = "syscall"
	// KindThread is lock contention and deadlock analysis with helgrind.
	KindThread Kind = "thread"
)

// AllKinds returns every analysis kind in canonical order.
func AllKinds() []Kind {
	return []Kind{KindMemory, KindCPU, KindCache, KindSyscall, KindThread}
}

// ParseKind converts a user supplied name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Valid reports whether k is a known analysis kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMemory, KindCPU, KindCache, KindSyscall, KindThread:
		return true
	default:
		return false
	}
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// RankingKey names the field findings of this kind are ranked by.
func (k Kind) RankingKey() string {
	switch k {
	case KindMemory:
		return "bytes_lost"
	case KindCPU:
		return "total_pct"
	case KindCache:
		return "miss_rate"
	case KindSyscall:
		return "total_time_us"
	case KindThread:
		return "wait_time_us"
	default:
		return ""
	}
}
