package node

import (
	"path/filepath"

	"curecoin.dev/node/crypto"
)

const SeedFileName = "seed.dta"

// WriteSeedFile stores seed in dir next to the tree layers. A different seed
// already present is never overwritten.
func WriteSeedFile(dir string, seed crypto.KeySeed) error {
	return writeFileIfAbsent(filepath.Join(dir, SeedFileName), []byte(string(seed)+"\n"), 0o600)
}
