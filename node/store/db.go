package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks = []byte("blocks_by_hash")
	bucketIndex  = []byte("block_index_by_hash")
)

type BlockStatus byte

const (
	BlockStatusUnknown  BlockStatus = 0
	BlockStatusValid    BlockStatus = 1
	BlockStatusInvalid  BlockStatus = 2
	BlockStatusOrphaned BlockStatus = 3
)

type BlockIndexEntry struct {
	Height   uint64
	PrevHash string
	Miner    string
	Status   BlockStatus
}

// DB keeps every accepted block, on any fork, keyed by block hash, plus the
// manifest naming the canonical tip.
type DB struct {
	chainDir string
	db       *bolt.DB
	manifest *Manifest
}

func Open(datadir string, network string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if network == "" {
		return nil, fmt.Errorf("network required")
	}

	chainDir := ChainDir(datadir, network)
	if err := ensureDir(chainDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(chainDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(chainDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{chainDir: chainDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(chainDir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil // fresh chain, no tip yet
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	if m.Network != network {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest network %q, opened as %q", m.Network, network)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ChainDir() string { return d.chainDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if err := writeManifestAtomic(d.chainDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

// PutBlock stores the raw block and its index entry in one transaction.
func (d *DB) PutBlock(hash string, raw []byte, e BlockIndexEntry) error {
	if hash == "" {
		return errors.New("store: empty block hash")
	}
	idx, err := encodeIndexEntry(e)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlocks).Put([]byte(hash), raw); err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put([]byte(hash), idx)
	})
}

func (d *DB) GetBlockBytes(hash string) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get([]byte(hash))
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// SetStatus updates the status of an indexed block.
func (d *DB) SetStatus(hash string, status BlockStatus) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndex)
		v := b.Get([]byte(hash))
		if v == nil {
			return fmt.Errorf("index: %s not found", hash)
		}
		e, err := decodeIndexEntry(v)
		if err != nil {
			return err
		}
		e.Status = status
		enc, err := encodeIndexEntry(*e)
		if err != nil {
			return err
		}
		return b.Put([]byte(hash), enc)
	})
}

func (d *DB) GetIndex(hash string) (*BlockIndexEntry, bool, error) {
	var out *BlockIndexEntry
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIndex).Get([]byte(hash))
		if v == nil {
			return nil
		}
		e, err := decodeIndexEntry(v)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// CountBlocks returns the number of indexed blocks.
func (d *DB) CountBlocks() (int, error) {
	n := 0
	err := d.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketIndex).Stats().KeyN
		return nil
	})
	return n, err
}

// Layout: height u64le | status u8 | prev_len u16le | prev | miner_len u16le | miner
func encodeIndexEntry(e BlockIndexEntry) ([]byte, error) {
	if len(e.PrevHash) > 0xffff || len(e.Miner) > 0xffff {
		return nil, fmt.Errorf("index: field too large")
	}
	out := make([]byte, 0, 8+1+2+len(e.PrevHash)+2+len(e.Miner))
	out = binary.LittleEndian.AppendUint64(out, e.Height)
	out = append(out, byte(e.Status))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(e.PrevHash))) // #nosec G115 -- checked against 0xffff above.
	out = append(out, e.PrevHash...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(e.Miner))) // #nosec G115 -- checked against 0xffff above.
	out = append(out, e.Miner...)
	return out, nil
}

func decodeIndexEntry(b []byte) (*BlockIndexEntry, error) {
	if len(b) < 8+1+2 {
		return nil, fmt.Errorf("index: truncated")
	}
	e := &BlockIndexEntry{
		Height: binary.LittleEndian.Uint64(b[0:8]),
		Status: BlockStatus(b[8]),
	}
	off := 9
	prevLen := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if off+prevLen+2 > len(b) {
		return nil, fmt.Errorf("index: bad prev len")
	}
	e.PrevHash = string(b[off : off+prevLen])
	off += prevLen
	minerLen := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if off+minerLen != len(b) {
		return nil, fmt.Errorf("index: bad miner len")
	}
	e.Miner = string(b[off:])
	return e, nil
}
