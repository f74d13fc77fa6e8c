package helpers

import (
	"math/rand"
	"time"
)

// SeedUnix is rand.Source for non-reproducible traffic.
func SeedUnix() rand.Source {
	return rand.NewSource(time.Now().UnixNano())
}
