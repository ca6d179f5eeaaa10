// Package rand generates the correlation ids the HTTP client stamps on
// outgoing requests. The ids only need to be cheap and unique enough to
// line a client log up with a server log, so a seeded PCG is used instead
// of crypto/rand on the hot path.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// charset is a reduced base64 alphabet: URL-safe and unambiguous in logs.
const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var defaultSource = newSource()

type source struct {
	mut sync.Mutex
	rng *rand.Rand
}

// newSource seeds a PCG from crypto/rand so separate processes do not
// emit the same id sequence.
func newSource() *source {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		panic("unreachable")
	}

	return &source{
		//nolint:gosec // correlation ids, not security material
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
	}
}

func (s *source) fill(buf []byte) {
	s.mut.Lock()
	defer s.mut.Unlock()

	for i := range buf {
		buf[i] = charset[s.rng.IntN(len(charset))]
	}
}

// NewRequestID returns a fresh id of the given length drawn from the
// reduced base64 alphabet.
func NewRequestID(length int) string {
	buf := make([]byte, length)
	defaultSource.fill(buf)
	return string(buf)
}
