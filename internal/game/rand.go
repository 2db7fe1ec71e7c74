// internal/game/rand.go
package game

import (
	crand "crypto/rand"
	"math/big"
	mrand "math/rand"
)

// Rand is the integer source used for every random choice in a round.
// Intn returns a uniform value in [0, n) and must not be called with n <= 0.
type Rand interface {
	Intn(n int) int
}

type cryptoRand struct{}

// CryptoRand returns a Rand backed by crypto/rand.
func CryptoRand() Rand { return cryptoRand{} }

func (cryptoRand) Intn(n int) int {
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return mrand.Intn(n)
	}
	return int(v.Int64())
}

// Shuffle returns a Fisher-Yates shuffled copy of ids.
func Shuffle(r Rand, ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func pick[T any](r Rand, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[r.Intn(len(items))], true
}
