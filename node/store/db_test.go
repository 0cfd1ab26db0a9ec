package store

import (
	"testing"
)

func TestDB_PutGetBlockAndIndex(t *testing.T) {
	datadir := t.TempDir()
	db, err := Open(datadir, "testnet")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if db.Manifest() != nil {
		t.Fatalf("fresh store must have no manifest")
	}

	entry := BlockIndexEntry{Height: 3, PrevHash: "AB12", Miner: "C1MINER", Status: BlockStatusValid}
	if err := db.PutBlock("CD34", []byte("{raw}"), entry); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	raw, ok, err := db.GetBlockBytes("CD34")
	if err != nil || !ok || string(raw) != "{raw}" {
		t.Fatalf("GetBlockBytes: %q ok=%v err=%v", raw, ok, err)
	}
	got, ok, err := db.GetIndex("CD34")
	if err != nil || !ok {
		t.Fatalf("GetIndex: ok=%v err=%v", ok, err)
	}
	if *got != entry {
		t.Fatalf("index mismatch: %+v want %+v", *got, entry)
	}

	if err := db.SetStatus("CD34", BlockStatusOrphaned); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, _, _ = db.GetIndex("CD34")
	if got.Status != BlockStatusOrphaned {
		t.Fatalf("status=%d", got.Status)
	}
	if err := db.SetStatus("NOPE", BlockStatusValid); err == nil {
		t.Fatalf("expected error for unknown block")
	}

	if _, ok, err := db.GetBlockBytes("NOPE"); err != nil || ok {
		t.Fatalf("missing block: ok=%v err=%v", ok, err)
	}
	if n, err := db.CountBlocks(); err != nil || n != 1 {
		t.Fatalf("CountBlocks=%d err=%v", n, err)
	}
	if err := db.PutBlock("", nil, entry); err == nil {
		t.Fatalf("expected error for empty hash")
	}
}

func TestDB_ManifestPersists(t *testing.T) {
	datadir := t.TempDir()
	db, err := Open(datadir, "testnet")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := &Manifest{SchemaVersion: SchemaVersionV1, Network: "testnet", TipHash: "FF", TipHeight: 9, LedgerHash: "AA", BlockCount: 10}
	if err := db.SetManifest(m); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = Open(datadir, "testnet")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if got := db.Manifest(); got == nil || *got != *m {
		t.Fatalf("manifest=%+v want %+v", got, m)
	}
}

func TestDB_OpenRejectsNetworkMismatch(t *testing.T) {
	datadir := t.TempDir()
	db, err := Open(datadir, "a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.SetManifest(&Manifest{SchemaVersion: SchemaVersionV1, Network: "b"}); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	_ = db.Close()
	if _, err := Open(datadir, "a"); err == nil {
		t.Fatalf("expected network mismatch error")
	}
	if _, err := Open("", "a"); err == nil {
		t.Fatalf("expected datadir error")
	}
}

func TestDB_IndexEncodeDecode(t *testing.T) {
	e := BlockIndexEntry{Height: 1 << 40, PrevHash: "", Miner: "m", Status: BlockStatusInvalid}
	b, err := encodeIndexEntry(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeIndexEntry(b)
	if err != nil || *got != e {
		t.Fatalf("decode: %+v %v", got, err)
	}
	if _, err := decodeIndexEntry(b[:5]); err == nil {
		t.Fatalf("expected truncated error")
	}
	if _, err := decodeIndexEntry(append(b, 0)); err == nil {
		t.Fatalf("expected trailing byte error")
	}
}
