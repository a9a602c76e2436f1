// Package isam implements the static multi-level ISAM index. Create
// writes a fixed chain of single-entry index blocks descending to one leaf
// block; Build instead bulk-loads sorted keys into block-factor-sized leaf
// blocks under one multi-entry root. Leaves grow overflow chains as they
// fill. The upper levels are never
// rebalanced — overflow chains are the sole degradation mode, per
// spec §4.6.
package isam

import (
	"encoding/binary"
	"os"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/index"
)

// HeaderSize is the fixed, space-padded JSON header at the start of the
// file.
const HeaderSize = 128

const blockHeaderSize = 12 // level(4) + record_count(4) + next_overflow(4)

// Defaults mirror the original implementation's configuration.
const (
	DefaultLevels      = 2
	DefaultBlockFactor = 10
)

const noBlock = int32(-1)

type fileHeader struct {
	Levels      int       `json:"levels"`
	BlockFactor int       `json:"block_factor"`
	KeyTag      codec.Tag `json:"key_tag"`
	KeyMaxLen   int       `json:"key_max_len"`
	TotalBlocks int       `json:"total_blocks"`
	RootBlocks  int       `json:"root_blocks"`
}

// Index is one ISAM index's open file handle.
type Index struct {
	f          *os.File
	hdr        fileHeader
	keyWidth   int
	recordSize int // key width + 4-byte pointer
	blockSize  int
}

// Create initializes a new ISAM file: a linear chain of levels-1 index
// blocks leading to one empty leaf block, per the original's
// _initialize_file.
func Create(path string, keyTag codec.Tag, keyMaxLen, levels, blockFactor int) (*Index, error) {
	if levels <= 0 {
		levels = DefaultLevels
	}
	if blockFactor <= 0 {
		blockFactor = DefaultBlockFactor
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	idx := &Index{
		f: f,
		hdr: fileHeader{
			Levels:      levels,
			BlockFactor: blockFactor,
			KeyTag:      keyTag,
			KeyMaxLen:   keyMaxLen,
			RootBlocks:  1,
		},
	}
	idx.computeLayout()
	if err := idx.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}

	blockID := 0
	for level := 0; level < levels-1; level++ {
		nextBlockID := int32(blockID + 1)
		if err := idx.writeBlock(blockID, level, []entry{{key: nil, ptr: nextBlockID}}, noBlock); err != nil {
			f.Close()
			return nil, err
		}
		blockID++
	}
	if err := idx.writeBlock(blockID, levels-1, nil, noBlock); err != nil {
		f.Close()
		return nil, err
	}
	idx.hdr.TotalBlocks = blockID + 1
	if err := idx.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// Open opens an existing ISAM file.
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
	idx.computeLayout()
	return idx, nil
}

func (idx *Index) computeLayout() {
	idx.keyWidth = codec.Size(idx.hdr.KeyTag, idx.hdr.KeyMaxLen)
	idx.recordSize = idx.keyWidth + 4
	idx.blockSize = blockHeaderSize + idx.hdr.BlockFactor*idx.recordSize
}

func (idx *Index) Close() error { return idx.f.Close() }

func (idx *Index) writeHeader() error {
	data, err := json.Marshal(idx.hdr)
	if err != nil {
		return err
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
	end := len(buf)
	for end > 0 && (buf[end-1] == ' ' || buf[end-1] == '\n') {
		end--
	}
	return json.Unmarshal(buf[:end], &idx.hdr)
}

type entry struct {
	key any // nil represents the "+inf" fallthrough sentinel
	ptr int32
}

func (idx *Index) blockOffset(id int) int64 {
	return HeaderSize + int64(id)*int64(idx.blockSize)
}

func (idx *Index) readBlock(id int32) (level int, entries []entry, nextOverflow int32, err error) {
	buf := make([]byte, idx.blockSize)
	if _, err = idx.f.ReadAt(buf, idx.blockOffset(int(id))); err != nil {
		return
	}
	level = int(binary.LittleEndian.Uint32(buf[0:4]))
	count := int(binary.LittleEndian.Uint32(buf[4:8]))
	nextOverflow = int32(binary.LittleEndian.Uint32(buf[8:12]))
	body := buf[blockHeaderSize:]
	entries = make([]entry, count)
	for i := 0; i < count; i++ {
		off := i * idx.recordSize
		kb := body[off : off+idx.keyWidth]
		ptr := int32(binary.LittleEndian.Uint32(body[off+idx.keyWidth : off+idx.recordSize]))
		if allZero(kb) {
			entries[i] = entry{key: nil, ptr: ptr}
			continue
		}
		v, derr := codec.Deserialize(kb, idx.hdr.KeyTag, idx.hdr.KeyMaxLen)
		if derr != nil {
			err = derr
			return
		}
		entries[i] = entry{key: v, ptr: ptr}
	}
	return
}

func (idx *Index) writeBlock(id int, level int, entries []entry, nextOverflow int32) error {
	buf := make([]byte, idx.blockSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(level))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(entries)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(nextOverflow))
	body := buf[blockHeaderSize:]
	for i, e := range entries {
		off := i * idx.recordSize
		if e.key != nil {
			kb, err := codec.Serialize(e.key, idx.hdr.KeyTag, idx.hdr.KeyMaxLen)
			if err != nil {
				return err
			}
			copy(body[off:off+idx.keyWidth], kb)
		}
		binary.LittleEndian.PutUint32(body[off+idx.keyWidth:off+idx.recordSize], uint32(e.ptr))
	}
	_, err := idx.f.WriteAt(buf, idx.blockOffset(id))
	return err
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func cmp(a, b any) int { return index.Compare(a, b) }

// findLeaf descends the fixed index-block levels starting at block 0,
// choosing the first entry whose key is >= the search key (nil entries
// act as +inf fallthrough), per spec §4.6. Root-level overflow (created
// by Build when a bulk load needs more partitions than one block holds)
// is walked the same way a leaf's overflow chain is.
func (idx *Index) findLeaf(key any) (int32, error) {
	blockID := int32(0)
	for level := 0; level < idx.hdr.Levels-1; level++ {
		next, err := idx.findInChain(blockID, key)
		if err != nil {
			return 0, err
		}
		blockID = next
	}
	return blockID, nil
}

// findInChain walks the block chain starting at headID (one index level,
// or a leaf's overflow chain), returning the first matching entry's
// pointer or the final fallback pointer if no block in the chain
// contains a match.
func (idx *Index) findInChain(headID int32, key any) (int32, error) {
	current := headID
	var lastPtr int32 = current + 1 // matches the original's "no records" fallback
	for current != noBlock {
		_, entries, nextOverflow, err := idx.readBlock(current)
		if err != nil {
			return 0, err
		}
		if len(entries) == 0 {
			return lastPtr, nil
		}
		for _, e := range entries {
			if e.key == nil || cmp(key, e.key) <= 0 {
				return e.ptr, nil
			}
		}
		lastPtr = entries[len(entries)-1].ptr
		if nextOverflow == noBlock {
			return lastPtr, nil
		}
		current = nextOverflow
	}
	return lastPtr, nil
}

// Build bulk-loads a freshly created, still-empty ISAM file from a
// key-sorted slice of entries, partitioning it into block-factor-sized
// leaf blocks with one multi-entry root pointing at each partition. This
// is the proper ISAM construction CREATE INDEX uses to back-fill a
// non-empty heap (spec §9's "sort-and-bulk-load" alternative to a sparse
// single-chain index), as opposed to Insert, which is for incremental
// single-row maintenance afterward and only ever grows one leaf's
// overflow chain.
func (idx *Index) Build(pairs []index.KeyValue) error {
	bf := idx.hdr.BlockFactor
	nChunks := (len(pairs) + bf - 1) / bf
	if nChunks == 0 {
		nChunks = 1
	}

	// Leaf blocks occupy ids [levels-1 .. levels-1+nChunks-1]; this
	// replaces the single empty leaf Create() wrote at block (levels-1).
	rootEntries := make([]entry, 0, nChunks)
	for c := 0; c < nChunks; c++ {
		lo := c * bf
		hi := lo + bf
		if hi > len(pairs) {
			hi = len(pairs)
		}
		chunk := pairs[lo:hi]
		entries := make([]entry, len(chunk))
		for i, kv := range chunk {
			entries[i] = entry{key: kv.Key, ptr: int32(kv.Position)}
		}
		leafID := idx.hdr.Levels - 1 + c
		if err := idx.writeBlock(leafID, idx.hdr.Levels-1, entries, noBlock); err != nil {
			return err
		}
		var rootKey any
		if c < nChunks-1 {
			rootKey = chunk[len(chunk)-1].Key
		} // else nil: fallthrough entry for the last partition
		rootEntries = append(rootEntries, entry{key: rootKey, ptr: int32(leafID)})
	}
	idx.hdr.TotalBlocks = idx.hdr.Levels - 1 + nChunks

	// Root (and any intermediate single-entry forwarding blocks already
	// written by Create) get the real partition list at the last index
	// level (block id levels-2, or 0 if levels==1).
	rootBlockID := 0
	if idx.hdr.Levels > 1 {
		rootBlockID = idx.hdr.Levels - 2
	}
	blockID := rootBlockID
	for start := 0; start < len(rootEntries); start += bf {
		end := start + bf
		if end > len(rootEntries) {
			end = len(rootEntries)
		}
		next := noBlock
		if end < len(rootEntries) {
			next = int32(idx.hdr.TotalBlocks)
			idx.hdr.TotalBlocks++
		}
		if err := idx.writeBlock(blockID, rootBlockID, rootEntries[start:end], next); err != nil {
			return err
		}
		blockID = int(next)
	}
	return idx.writeHeader()
}

// Insert finds the target leaf and inserts or overwrites key's mapping,
// attaching a new overflow block when the leaf chain is full, per
// spec §4.6.
func (idx *Index) Insert(key any, position int64) error {
	leafID, err := idx.findLeaf(key)
	if err != nil {
		return err
	}
	ok, err := idx.insertInChain(leafID, key, position)
	if err != nil || ok {
		return err
	}
	return nil
}

// insertInChain walks the leaf's overflow chain, overwriting a duplicate
// key if found, else inserting into the first block with room, else
// appending a new overflow block.
func (idx *Index) insertInChain(headID int32, key any, position int64) (bool, error) {
	current := headID
	for {
		level, entries, nextOverflow, err := idx.readBlock(current)
		if err != nil {
			return false, err
		}
		for i, e := range entries {
			if e.key != nil && cmp(e.key, key) == 0 {
				entries[i].ptr = int32(position)
				return true, idx.writeBlock(int(current), level, entries, nextOverflow)
			}
		}
		if len(entries) < idx.hdr.BlockFactor {
			entries = append(entries, entry{key: key, ptr: int32(position)})
			sortEntries(entries)
			return true, idx.writeBlock(int(current), level, entries, nextOverflow)
		}
		if nextOverflow == noBlock {
			newID := idx.hdr.TotalBlocks
			idx.hdr.TotalBlocks++
			if err := idx.writeHeader(); err != nil {
				return false, err
			}
			if err := idx.writeBlock(newID, idx.hdr.Levels-1, []entry{{key: key, ptr: int32(position)}}, noBlock); err != nil {
				return false, err
			}
			return true, idx.writeBlock(int(current), level, entries, int32(newID))
		}
		current = nextOverflow
	}
}

func sortEntries(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].key == nil {
			return false
		}
		if entries[j].key == nil {
			return true
		}
		return cmp(entries[i].key, entries[j].key) < 0
	})
}

// Search scans the leaf then its overflow chain.
func (idx *Index) Search(key any) (int64, error) {
	leafID, err := idx.findLeaf(key)
	if err != nil {
		return 0, err
	}
	current := leafID
	for current != noBlock {
		_, entries, nextOverflow, err := idx.readBlock(current)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if e.key != nil && cmp(e.key, key) == 0 {
				return int64(e.ptr), nil
			}
		}
		current = nextOverflow
	}
	return 0, index.ErrKeyNotFound
}

// Delete scans the leaf then its overflow chain; no compaction is
// performed, per spec §4.6.
func (idx *Index) Delete(key any) error {
	leafID, err := idx.findLeaf(key)
	if err != nil {
		return err
	}
	current := leafID
	for current != noBlock {
		level, entries, nextOverflow, err := idx.readBlock(current)
		if err != nil {
			return err
		}
		for i, e := range entries {
			if e.key != nil && cmp(e.key, key) == 0 {
				entries = append(entries[:i], entries[i+1:]...)
				return idx.writeBlock(int(current), level, entries, nextOverflow)
			}
		}
		current = nextOverflow
	}
	return nil
}

// LeafBlockCount returns the number of blocks at the deepest level
// (leaf + all overflow blocks reachable from any leaf chain), used by
// tests checking scenario S4's block-count invariant.
func (idx *Index) LeafBlockCount() (int, error) {
	count := 0
	for id := 0; id < idx.hdr.TotalBlocks; id++ {
		level, _, _, err := idx.readBlock(int32(id))
		if err != nil {
			return 0, err
		}
		if level == idx.hdr.Levels-1 {
			count++
		}
	}
	return count, nil
}

// RootEntryCount returns the number of entries in block 0 (the root),
// used by tests checking scenario S4.
func (idx *Index) RootEntryCount() (int, error) {
	_, entries, _, err := idx.readBlock(0)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
