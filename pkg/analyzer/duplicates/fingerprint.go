package duplicates

import (
	"github.com/cespare/xxhash/v2"

	"github.com/augurlabs/augur/pkg/lexer"
)

// fingerprintBase is the multiplier for the polynomial rolling hash
// (FNV prime). Arithmetic wraps mod 2^64.
const fingerprintBase uint64 = 0x100000001b3

// matchForms extracts the comparison form of every token.
func matchForms(tokens []lexer.Token) []string {
	forms := make([]string, len(tokens))
	for i, t := range tokens {
		forms[i] = t.Match()
	}
	return forms
}

// tokenHashes maps each token's match form to a 64-bit hash. The rolling
// hash composes these instead of raw text so window updates are O(1)
// regardless of token length.
func tokenHashes(forms []string) []uint64 {
	hashes := make([]uint64, len(forms))
	for i, f := range forms {
		hashes[i] = xxhash.Sum64String(f)
	}
	return hashes
}

// fingerprints computes one polynomial hash per window of w token hashes,
// stride 1, via incremental update: O(n) total, not O(n*w).
//
// Hash equality is only a candidate signal. The merge phase re-verifies the
// underlying token slices, so correctness never depends on the absence of
// collisions.
func fingerprints(hashes []uint64, w int) []uint64 {
	if w <= 0 || len(hashes) < w {
		return nil
	}

	// highPow = base^(w-1), for removing the outgoing token.
	highPow := uint64(1)
	for i := 0; i < w-1; i++ {
		highPow *= fingerprintBase
	}

	out := make([]uint64, len(hashes)-w+1)
	var h uint64
	for i := 0; i < w; i++ {
		h = h*fingerprintBase + hashes[i]
	}
	out[0] = h

	for i := w; i < len(hashes); i++ {
		h = (h - hashes[i-w]*highPow) * fingerprintBase
		h += hashes[i]
		out[i-w+1] = h
	}
	return out
}
