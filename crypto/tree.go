package crypto

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	treeInfoFile = "info.dta"
	leafChunk    = 256
)

// MerkleTree holds every layer of an address tree. Layers[0] are the leaf digests,
// Layers[Depth] holds the single base32 root.
type MerkleTree struct {
	Depth  int
	Layers [][]string
}

// GenerateTree derives all 2^depth leaves from seed and hashes them up to the root.
// Leaves are computed concurrently.
func GenerateTree(ctx context.Context, seed KeySeed, depth int) (*MerkleTree, error) {
	if _, err := PrefixForDepth(depth); err != nil {
		return nil, err
	}
	if seed == "" {
		return nil, errors.New("empty key seed")
	}
	n := 1 << depth
	leaves := make([]string, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < n; start += leafChunk {
		end := min(start+leafChunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				priv, err := DeriveKeypair(seed, int64(i))
				if err != nil {
					return err
				}
				leaves[i] = leafDigest(LamportPublicKey(priv))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("generate leaves: %w", err)
	}
	return treeFromLeaves(depth, leaves), nil
}

func treeFromLeaves(depth int, leaves []string) *MerkleTree {
	layers := make([][]string, 0, depth+1)
	layers = append(layers, leaves)
	cur := leaves
	for level := 0; level < depth; level++ {
		next := make([]string, len(cur)/2)
		for i := range next {
			next[i] = combineNodes(level, depth, cur[2*i], cur[2*i+1])
		}
		layers = append(layers, next)
		cur = next
	}
	return &MerkleTree{Depth: depth, Layers: layers}
}

// combineNodes hashes two siblings at level into their parent. The top
// concatenation is encoded as the 32-char base32 root.
func combineNodes(level, depth int, left, right string) string {
	if level == depth-1 {
		return sha256Base32(left + right)[:rootLen]
	}
	return sha256B64(left + right)
}

func (t *MerkleTree) Root() string {
	if t == nil || len(t.Layers) == 0 {
		return ""
	}
	top := t.Layers[len(t.Layers)-1]
	if len(top) != 1 {
		return ""
	}
	return top[0]
}

func (t *MerkleTree) Address() (string, error) {
	if t == nil {
		return "", errors.New("nil tree")
	}
	return AddressFromRoot(t.Depth, t.Root())
}

func (t *MerkleTree) LeafCount() int64 {
	if t == nil {
		return 0
	}
	return int64(1) << t.Depth
}

// AuthPath returns the sibling of index's ancestor at every layer below the root,
// leaf layer first.
func (t *MerkleTree) AuthPath(index int64) ([]string, error) {
	if t == nil {
		return nil, errors.New("nil tree")
	}
	if index < 0 || index >= t.LeafCount() {
		return nil, fmt.Errorf("signature index %d outside tree of %d leaves", index, t.LeafCount())
	}
	path := make([]string, t.Depth)
	pos := index
	for level := 0; level < t.Depth; level++ {
		path[level] = t.Layers[level][pos^1]
		pos >>= 1
	}
	return path, nil
}

// Save writes the tree as one file per layer plus an info file into dir.
func (t *MerkleTree) Save(dir string) error {
	addr, err := t.Address()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	info := fmt.Sprintf("address: %s\nlayers: %d\n", addr, t.Depth)
	if err := os.WriteFile(filepath.Join(dir, treeInfoFile), []byte(info), 0o600); err != nil {
		return err
	}
	for level, nodes := range t.Layers {
		var b strings.Builder
		for _, n := range nodes {
			b.WriteString(n)
			b.WriteByte('\n')
		}
		name := filepath.Join(dir, fmt.Sprintf("layer%d.lyr", level))
		if err := os.WriteFile(name, []byte(b.String()), 0o600); err != nil {
			return err
		}
	}
	return nil
}

// LoadTree reads a tree written by Save and checks it hashes to the recorded address.
func LoadTree(dir string) (*MerkleTree, error) {
	raw, err := os.ReadFile(filepath.Join(dir, treeInfoFile))
	if err != nil {
		return nil, err
	}
	var addr string
	depth := -1
	for _, line := range strings.Split(string(raw), "\n") {
		key, val, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "address":
			addr = strings.TrimSpace(val)
		case "layers":
			d, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return nil, fmt.Errorf("tree info layers: %w", err)
			}
			depth = d
		}
	}
	if _, err := PrefixForDepth(depth); err != nil {
		return nil, fmt.Errorf("tree info: %w", err)
	}
	leaves, err := readLayer(filepath.Join(dir, "layer0.lyr"), 1<<depth)
	if err != nil {
		return nil, err
	}
	t := treeFromLeaves(depth, leaves)
	got, err := t.Address()
	if err != nil {
		return nil, err
	}
	if got != addr {
		return nil, fmt.Errorf("tree root does not match address %s", addr)
	}
	return t, nil
}

func readLayer(path string, want int) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is derived from the operator's key directory.
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out := make([]string, 0, want)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) != want {
		return nil, fmt.Errorf("%s: %d nodes, want %d", path, len(out), want)
	}
	return out, nil
}
