package util

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Key joins parts into a cache key: prefix:part1:part2.
func Key(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}

// SetKey returns a deterministic composite key of sorted members with a short hash.
// Member order and duplicates do not change the key. An empty set yields prefix:all.
func SetKey(prefix string, members []string) string {
	if len(members) == 0 {
		return prefix + ":all"
	}
	s := make([]string, len(members))
	copy(s, members)
	sort.Strings(s)
	s = compact(s)
	joined := strings.Join(s, ",")
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%s:%x", prefix, sum)[:len(prefix)+1+16] // prefix + ":" + first 16 hex chars
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}
