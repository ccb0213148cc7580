// Package hashutil provides the deterministic hashing helpers used for
// experiment seeds, vocabulary index assignment, and model init tracking.
package hashutil

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"

	"github.com/codetta-ml/codetta/internal/state"
)

// ModelHash returns a SHA-1 digest over all parameters of a state dict, in
// sorted name order. Comparing hashes across runs catches regressions in
// model initialisation.
func ModelHash(d state.Dict) string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha1.New()
	buf := make([]byte, 4)
	for _, name := range names {
		for _, v := range d[name].Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			h.Write(buf)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashTrick pairs a word with an embedding index by hashing it into
// [0, vocabSize). The same word always lands on the same index.
func HashTrick(word string, vocabSize int) (int, error) {
	if vocabSize <= 0 {
		return 0, fmt.Errorf("hashutil: vocab size %d must be positive", vocabSize)
	}
	sum := sha256.Sum256([]byte(word))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, big.NewInt(int64(vocabSize))).Int64()), nil
}

// SeedFromString derives a seed from a string that is not a number, e.g. a
// model or run name. nBytes controls how many bytes of the SHA-1 digest are
// used and is clamped to [1, 8] so the seed fits an unsigned 64-bit integer.
func SeedFromString(s string, nBytes int) uint64 {
	if nBytes < 1 {
		nBytes = 1
	} else if nBytes > 8 {
		nBytes = 8
	}
	sum := sha1.Sum([]byte(s))
	digest := hex.EncodeToString(sum[:])
	seed, err := strconv.ParseUint(digest[:nBytes*2], 16, 64)
	if err != nil {
		// Unreachable: the input is a bounded hex prefix.
		panic(err)
	}
	return seed
}
