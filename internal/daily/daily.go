// internal/daily/daily.go
//
// Daily layout: every player who picks "daily" mode on the same UTC date
// gets the same mole timings. The seed is derived with HKDF-SHA256 from the
// server's salt and the date, so the layout cannot be predicted without
// the salt.

package daily

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math/rand"
	"time"

	"golang.org/x/crypto/hkdf"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns a deterministic seed for a date: the first 8 bytes of
// HKDF-SHA256(secret=salt, info=YYYY-MM-DD).
func Seed(date time.Time, salt string) int64 {
	r := hkdf.New(sha256.New, []byte(salt), nil, []byte(DateKey(date)))
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		// HKDF-SHA256 can emit 8160 bytes; 8 never fails.
		panic(err)
	}
	return int64(binary.BigEndian.Uint64(buf[:]))
}

// Rand returns a random source seeded for the given date.
func Rand(date time.Time, salt string) *rand.Rand {
	return rand.New(rand.NewSource(Seed(date, salt)))
}
