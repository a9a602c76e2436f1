// Package hash implements the extendible hashing index: a growable
// directory of bucket pointers over a dense bucket array, each bucket
// holding a small fixed number of (key, position) slots. Directory
// doubling and bucket splitting follow spec §4.4.
package hash

import (
	"encoding/binary"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"

	"github.com/jlang/reldb/codec"
)

// Algorithm selects the hash function used to place keys into directory
// slots. xxh3 is the default (spec §4.4 names xxhash explicitly); blake2b
// is offered as an alternate for keys where cryptographic avalanche matters
// more than raw speed.
type Algorithm int

const (
	AlgXXH3 Algorithm = iota
	AlgBlake2b
)

// HeaderSize is the fixed, space-padded JSON header at the start of the
// file, the same self-describing-header convention the rest of this
// engine's binary files use.
const HeaderSize = 128

// bucketHeaderSize is the twelve-byte (local depth, capacity, record
// count) prefix of every bucket, per spec §4.4.
const bucketHeaderSize = 12

// DefaultBucketCapacity is the number of (key, position) slots per bucket
// when Create is not given an explicit capacity.
const DefaultBucketCapacity = 4

type fileHeader struct {
	GlobalDepth    int       `json:"global_depth"`
	DirectoryLen   int       `json:"directory_len"`
	BucketCount    int       `json:"bucket_count"`
	KeyTag         codec.Tag `json:"key_tag"`
	KeyMaxLen      int       `json:"key_max_len"`
	BucketCapacity int       `json:"bucket_capacity"`
	Algorithm      Algorithm `json:"algorithm"`
}

// Index is one extendible-hash index's open file handle.
type Index struct {
	f          *os.File
	hdr        fileHeader
	slotSize   int // key bytes + 8-byte position
	bucketSize int // bucketHeaderSize + capacity*slotSize
}

// Create initializes a new, empty extendible-hash file at path for keys of
// the given tag/maxLen, using the default xxh3 algorithm.
func Create(path string, keyTag codec.Tag, keyMaxLen int, bucketCapacity int) (*Index, error) {
	return CreateWithAlgorithm(path, keyTag, keyMaxLen, bucketCapacity, AlgXXH3)
}

// CreateWithAlgorithm is Create with an explicit hash Algorithm.
func CreateWithAlgorithm(path string, keyTag codec.Tag, keyMaxLen int, bucketCapacity int, algorithm Algorithm) (*Index, error) {
	if bucketCapacity <= 0 {
		bucketCapacity = DefaultBucketCapacity
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	idx := &Index{
		f: f,
		hdr: fileHeader{
			GlobalDepth:    1,
			DirectoryLen:   2,
			BucketCount:    2,
			KeyTag:         keyTag,
			KeyMaxLen:      keyMaxLen,
			BucketCapacity: bucketCapacity,
			Algorithm:      algorithm,
		},
	}
	idx.slotSize = codec.Size(keyTag, keyMaxLen) + 8
	idx.bucketSize = bucketHeaderSize + bucketCapacity*idx.slotSize

	if err := idx.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	// Two initial buckets, directory[0]->0, directory[1]->1, both local depth 1.
	for i := 0; i < 2; i++ {
		if err := idx.writeBucketHeader(i, 1, 0); err != nil {
			f.Close()
			return nil, err
		}
	}
	dir := make([]byte, idx.hdr.DirectoryLen*4)
	binary.LittleEndian.PutUint32(dir[0:4], 0)
	binary.LittleEndian.PutUint32(dir[4:8], 1)
	if _, err := f.WriteAt(dir, HeaderSize); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// Open opens an existing extendible-hash file.
func Open(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	idx := &Index{f: f}
	if err := idx.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	idx.slotSize = codec.Size(idx.hdr.KeyTag, idx.hdr.KeyMaxLen) + 8
	idx.bucketSize = bucketHeaderSize + idx.hdr.BucketCapacity*idx.slotSize
	return idx, nil
}

// Close flushes and closes the backing file.
func (idx *Index) Close() error {
	return idx.f.Close()
}

func (idx *Index) directoryOffset() int64 {
	return HeaderSize
}

func (idx *Index) bucketsOffset() int64 {
	return idx.directoryOffset() + int64(idx.hdr.DirectoryLen)*4
}

func (idx *Index) bucketOffset(bucketID int) int64 {
	return idx.bucketsOffset() + int64(bucketID)*int64(idx.bucketSize)
}

func (idx *Index) writeHeader() error {
	data, err := json.Marshal(idx.hdr)
	if err != nil {
		return err
	}
	if len(data) > HeaderSize-1 {
		return fmt.Errorf("hash: header too large (%d bytes)", len(data))
	}
	buf := make([]byte, HeaderSize)
	copy(buf, data)
	for i := len(data); i < HeaderSize-1; i++ {
		buf[i] = ' '
	}
	buf[HeaderSize-1] = '\n'
	_, err = idx.f.WriteAt(buf, 0)
	return err
}

func (idx *Index) readHeader() error {
	buf := make([]byte, HeaderSize)
	if _, err := idx.f.ReadAt(buf, 0); err != nil {
		return err
	}
	trimmed := trimSpaceRight(buf)
	return json.Unmarshal(trimmed, &idx.hdr)
}

func trimSpaceRight(b []byte) []byte {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == '\n') {
		end--
	}
	return b[:end]
}

func (idx *Index) readDirectory() ([]uint32, error) {
	buf := make([]byte, idx.hdr.DirectoryLen*4)
	if _, err := idx.f.ReadAt(buf, idx.directoryOffset()); err != nil {
		return nil, err
	}
	dir := make([]uint32, idx.hdr.DirectoryLen)
	for i := range dir {
		dir[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return dir, nil
}

func (idx *Index) writeDirectoryEntry(slot int, bucketID uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, bucketID)
	_, err := idx.f.WriteAt(buf, idx.directoryOffset()+int64(slot)*4)
	return err
}

type bucketSlot struct {
	key      []byte
	position int64
	empty    bool
}

type bucket struct {
	localDepth int
	count      int
	slots      []bucketSlot
}

func (idx *Index) readBucket(bucketID int) (*bucket, error) {
	buf := make([]byte, idx.bucketSize)
	if _, err := idx.f.ReadAt(buf, idx.bucketOffset(bucketID)); err != nil {
		return nil, err
	}
	b := &bucket{
		localDepth: int(binary.LittleEndian.Uint32(buf[0:4])),
		count:      int(binary.LittleEndian.Uint32(buf[8:12])),
	}
	keyWidth := idx.slotSize - 8
	b.slots = make([]bucketSlot, idx.hdr.BucketCapacity)
	for i := 0; i < idx.hdr.BucketCapacity; i++ {
		off := bucketHeaderSize + i*idx.slotSize
		keyBytes := buf[off : off+keyWidth]
		if allZero(keyBytes) {
			b.slots[i] = bucketSlot{empty: true}
			continue
		}
		pos := int64(binary.LittleEndian.Uint64(buf[off+keyWidth : off+idx.slotSize]))
		kb := make([]byte, keyWidth)
		copy(kb, keyBytes)
		b.slots[i] = bucketSlot{key: kb, position: pos}
	}
	return b, nil
}

func (idx *Index) writeBucketHeader(bucketID, localDepth, count int) error {
	buf := make([]byte, bucketHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(localDepth))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(idx.hdr.BucketCapacity))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(count))
	_, err := idx.f.WriteAt(buf, idx.bucketOffset(bucketID))
	return err
}

func (idx *Index) writeBucket(bucketID int, b *bucket) error {
	if err := idx.writeBucketHeader(bucketID, b.localDepth, b.count); err != nil {
		return err
	}
	keyWidth := idx.slotSize - 8
	buf := make([]byte, idx.bucketSize-bucketHeaderSize)
	for i, s := range b.slots {
		off := i * idx.slotSize
		if s.empty {
			continue
		}
		copy(buf[off:off+keyWidth], s.key)
		binary.LittleEndian.PutUint64(buf[off+keyWidth:off+idx.slotSize], uint64(s.position))
	}
	_, err := idx.f.WriteAt(buf, idx.bucketOffset(bucketID)+bucketHeaderSize)
	return err
}

func (idx *Index) allocateBucket(localDepth int) (int, error) {
	id := idx.hdr.BucketCount
	idx.hdr.BucketCount++
	if err := idx.writeHeader(); err != nil {
		return 0, err
	}
	if err := idx.writeBucketHeader(id, localDepth, 0); err != nil {
		return 0, err
	}
	return id, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func (idx *Index) keyBytes(key any) ([]byte, error) {
	return codec.Serialize(key, idx.hdr.KeyTag, idx.hdr.KeyMaxLen)
}

func (idx *Index) hashOf(kb []byte) uint64 {
	if idx.hdr.Algorithm == AlgBlake2b {
		sum := blake2b.Sum512(kb)
		return binary.LittleEndian.Uint64(sum[:8])
	}
	return xxh3.Hash(kb)
}

func dirSlot(h uint64, depth int) int {
	if depth == 0 {
		return 0
	}
	return int(h & ((1 << uint(depth)) - 1))
}

// Insert maps key to position, splitting buckets and doubling the
// directory as many times as needed to make room, per spec §4.4.
func (idx *Index) Insert(key any, position int64) error {
	kb, err := idx.keyBytes(key)
	if err != nil {
		return err
	}
	h := idx.hashOf(kb)
	for {
		dir, err := idx.readDirectory()
		if err != nil {
			return err
		}
		slot := dirSlot(h, idx.hdr.GlobalDepth)
		bucketID := int(dir[slot])
		b, err := idx.readBucket(bucketID)
		if err != nil {
			return err
		}

		// Overwrite if present.
		for i, s := range b.slots {
			if !s.empty && bytesEqual(s.key, kb) {
				b.slots[i].position = position
				return idx.writeBucket(bucketID, b)
			}
		}
		// Append if room.
		for i, s := range b.slots {
			if s.empty {
				b.slots[i] = bucketSlot{key: kb, position: position}
				b.count++
				return idx.writeBucket(bucketID, b)
			}
		}

		// Bucket full: split.
		if b.localDepth == idx.hdr.GlobalDepth {
			if err := idx.doubleDirectory(); err != nil {
				return err
			}
		}
		if err := idx.splitBucket(bucketID, b); err != nil {
			return err
		}
		// retry insert against the (now split) structure
	}
}

func (idx *Index) doubleDirectory() error {
	dir, err := idx.readDirectory()
	if err != nil {
		return err
	}
	newDir := make([]uint32, len(dir)*2)
	copy(newDir, dir)
	copy(newDir[len(dir):], dir)
	idx.hdr.GlobalDepth++
	idx.hdr.DirectoryLen = len(newDir)
	if err := idx.writeHeader(); err != nil {
		return err
	}
	buf := make([]byte, len(newDir)*4)
	for i, v := range newDir {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	_, err = idx.f.WriteAt(buf, idx.directoryOffset())
	return err
}

func (idx *Index) splitBucket(bucketID int, b *bucket) error {
	newLocalDepth := b.localDepth + 1
	newBucketID, err := idx.allocateBucket(newLocalDepth)
	if err != nil {
		return err
	}

	// Collect entries, clear the old bucket, redistribute by the bit at
	// position localDepth (0-indexed from the low bit).
	entries := make([]bucketSlot, 0, b.count)
	for _, s := range b.slots {
		if !s.empty {
			entries = append(entries, s)
		}
	}

	oldBucket := &bucket{localDepth: newLocalDepth, slots: make([]bucketSlot, idx.hdr.BucketCapacity)}
	for i := range oldBucket.slots {
		oldBucket.slots[i].empty = true
	}
	newBucket := &bucket{localDepth: newLocalDepth, slots: make([]bucketSlot, idx.hdr.BucketCapacity)}
	for i := range newBucket.slots {
		newBucket.slots[i].empty = true
	}

	bitPos := uint(b.localDepth) // bit at position = old local depth selects old vs new half
	oi, ni := 0, 0
	for _, e := range entries {
		h := idx.hashOf(e.key)
		if (h>>bitPos)&1 == 0 {
			oldBucket.slots[oi] = e
			oi++
		} else {
			newBucket.slots[ni] = e
			ni++
		}
	}
	oldBucket.count = oi
	newBucket.count = ni

	if err := idx.writeBucket(bucketID, oldBucket); err != nil {
		return err
	}
	if err := idx.writeBucket(newBucketID, newBucket); err != nil {
		return err
	}

	// Repoint every directory entry whose bit at bitPos is 1 and which
	// currently points at the old bucket, to the new bucket.
	dir, err := idx.readDirectory()
	if err != nil {
		return err
	}
	for slot, id := range dir {
		if int(id) != bucketID {
			continue
		}
		if (uint(slot)>>bitPos)&1 == 1 {
			if err := idx.writeDirectoryEntry(slot, uint32(newBucketID)); err != nil {
				return err
			}
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Search returns the position mapped to key.
func (idx *Index) Search(key any) (int64, error) {
	kb, err := idx.keyBytes(key)
	if err != nil {
		return 0, err
	}
	h := idx.hashOf(kb)
	dir, err := idx.readDirectory()
	if err != nil {
		return 0, err
	}
	slot := dirSlot(h, idx.hdr.GlobalDepth)
	b, err := idx.readBucket(int(dir[slot]))
	if err != nil {
		return 0, err
	}
	for _, s := range b.slots {
		if !s.empty && bytesEqual(s.key, kb) {
			return s.position, nil
		}
	}
	return 0, ErrKeyNotFound
}

// Delete removes key's mapping. Absent buckets and the directory are
// never shrunk (spec §4.4, §9 OQ3).
func (idx *Index) Delete(key any) error {
	kb, err := idx.keyBytes(key)
	if err != nil {
		return err
	}
	h := idx.hashOf(kb)
	dir, err := idx.readDirectory()
	if err != nil {
		return err
	}
	slot := dirSlot(h, idx.hdr.GlobalDepth)
	bucketID := int(dir[slot])
	b, err := idx.readBucket(bucketID)
	if err != nil {
		return err
	}
	for i, s := range b.slots {
		if !s.empty && bytesEqual(s.key, kb) {
			b.slots[i] = bucketSlot{empty: true}
			b.count--
			return idx.writeBucket(bucketID, b)
		}
	}
	return nil
}

// GlobalDepth exposes the current directory bit-width, used by tests
// checking invariant 6 (every bucket's local depth ≤ global depth).
func (idx *Index) GlobalDepth() int {
	return idx.hdr.GlobalDepth
}

// BucketLocalDepth returns the local depth of the bucket bound to
// directory slot slot, for invariant checking.
func (idx *Index) BucketLocalDepth(slot int) (int, error) {
	dir, err := idx.readDirectory()
	if err != nil {
		return 0, err
	}
	b, err := idx.readBucket(int(dir[slot]))
	if err != nil {
		return 0, err
	}
	return b.localDepth, nil
}

// DirectoryLen returns the current directory length (2^GlobalDepth).
func (idx *Index) DirectoryLen() int {
	return idx.hdr.DirectoryLen
}
