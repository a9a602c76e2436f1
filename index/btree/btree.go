// Package btree implements the B+ tree index: a flat array of fixed-size
// node slots, leaves chained for ordered scans, internal nodes holding
// separator keys. Splits and root collapse follow spec §4.5.
package btree

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/index"
)

// HeaderSize is the fixed, space-padded JSON header at the start of the
// file.
const HeaderSize = 128

const nodeHeaderSize = 12 // is_leaf(4) + key_count(4) + parent_id(4)

// DefaultOrder matches the original implementation's default B+ tree
// fan-out.
const DefaultOrder = 4

const noID = int32(-1)

type fileHeader struct {
	RootID     int32     `json:"root_id"`
	NodeCount  int32     `json:"node_count"`
	Height     int32     `json:"height"`
	RecordCnt  int32     `json:"record_count"`
	KeyTag     codec.Tag `json:"key_tag"`
	KeyMaxLen  int       `json:"key_max_len"`
	Order      int       `json:"order"`
}

// Index is one B+ tree index's open file handle.
type Index struct {
	f         *os.File
	hdr       fileHeader
	maxKeys   int
	minKeys   int
	keyWidth  int
	nodeSize  int
	leafBody  int
	innerBody int
}

// Create initializes a new, empty B+ tree file for keys of the given
// tag/maxLen, with the given order (DefaultOrder if <= 0).
func Create(path string, keyTag codec.Tag, keyMaxLen int, order int) (*Index, error) {
	if order <= 0 {
		order = DefaultOrder
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	idx := &Index{
		f: f,
		hdr: fileHeader{
			RootID:    noID,
			NodeCount: 0,
			Height:    0,
			RecordCnt: 0,
			KeyTag:    keyTag,
			KeyMaxLen: keyMaxLen,
			Order:     order,
		},
	}
	idx.computeLayout()
	if err := idx.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// Open opens an existing B+ tree file.
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
	idx.maxKeys = idx.hdr.Order - 1
	idx.minKeys = idx.maxKeys / 2
	if idx.minKeys < 1 {
		idx.minKeys = 1
	}
	idx.keyWidth = codec.Size(idx.hdr.KeyTag, idx.hdr.KeyMaxLen)
	idx.leafBody = idx.maxKeys*idx.keyWidth + idx.maxKeys*8 + 4 // keys + positions + next-leaf id
	idx.innerBody = idx.maxKeys*idx.keyWidth + idx.hdr.Order*4  // keys + child ids
	body := idx.leafBody
	if idx.innerBody > body {
		body = idx.innerBody
	}
	idx.nodeSize = nodeHeaderSize + body
}

func (idx *Index) Close() error { return idx.f.Close() }

func (idx *Index) writeHeader() error {
	data, err := json.Marshal(idx.hdr)
	if err != nil {
		return err
	}
	if len(data) > HeaderSize-1 {
		return fmt.Errorf("btree: header too large (%d bytes)", len(data))
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

type node struct {
	id       int32
	isLeaf   bool
	parent   int32
	keys     []any
	// leaf fields
	positions []int64
	nextLeaf  int32
	// internal fields
	children []int32
}

func (idx *Index) nodeOffset(id int32) int64 {
	return HeaderSize + int64(id)*int64(idx.nodeSize)
}

func (idx *Index) readNode(id int32) (*node, error) {
	buf := make([]byte, idx.nodeSize)
	if _, err := idx.f.ReadAt(buf, idx.nodeOffset(id)); err != nil {
		return nil, err
	}
	isLeaf := binary.LittleEndian.Uint32(buf[0:4]) == 1
	keyCount := int(binary.LittleEndian.Uint32(buf[4:8]))
	parent := int32(binary.LittleEndian.Uint32(buf[8:12]))

	n := &node{id: id, isLeaf: isLeaf, parent: parent}
	body := buf[nodeHeaderSize:]
	n.keys = make([]any, keyCount)
	for i := 0; i < keyCount; i++ {
		kb := body[i*idx.keyWidth : (i+1)*idx.keyWidth]
		v, err := codec.Deserialize(kb, idx.hdr.KeyTag, idx.hdr.KeyMaxLen)
		if err != nil {
			return nil, err
		}
		n.keys[i] = v
	}
	keysArea := idx.maxKeys * idx.keyWidth
	if isLeaf {
		n.positions = make([]int64, keyCount)
		for i := 0; i < keyCount; i++ {
			off := keysArea + i*8
			n.positions[i] = int64(binary.LittleEndian.Uint64(body[off : off+8]))
		}
		nextOff := keysArea + idx.maxKeys*8
		n.nextLeaf = int32(binary.LittleEndian.Uint32(body[nextOff : nextOff+4]))
	} else {
		n.children = make([]int32, keyCount+1)
		for i := 0; i < keyCount+1; i++ {
			off := keysArea + i*4
			n.children[i] = int32(binary.LittleEndian.Uint32(body[off : off+4]))
		}
	}
	return n, nil
}

func (idx *Index) writeNode(n *node) error {
	buf := make([]byte, idx.nodeSize)
	if n.isLeaf {
		binary.LittleEndian.PutUint32(buf[0:4], 1)
	}
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(n.keys)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(n.parent))

	body := buf[nodeHeaderSize:]
	for i, k := range n.keys {
		kb, err := codec.Serialize(k, idx.hdr.KeyTag, idx.hdr.KeyMaxLen)
		if err != nil {
			return err
		}
		copy(body[i*idx.keyWidth:], kb)
	}
	keysArea := idx.maxKeys * idx.keyWidth
	if n.isLeaf {
		for i, p := range n.positions {
			off := keysArea + i*8
			binary.LittleEndian.PutUint64(body[off:off+8], uint64(p))
		}
		nextOff := keysArea + idx.maxKeys*8
		binary.LittleEndian.PutUint32(body[nextOff:nextOff+4], uint32(n.nextLeaf))
	} else {
		for i, c := range n.children {
			off := keysArea + i*4
			binary.LittleEndian.PutUint32(body[off:off+4], uint32(c))
		}
	}
	_, err := idx.f.WriteAt(buf, idx.nodeOffset(n.id))
	return err
}

func (idx *Index) allocateNode() int32 {
	id := idx.hdr.NodeCount
	idx.hdr.NodeCount++
	return id
}

func cmp(a, b any) int { return index.Compare(a, b) }

// findLeaf descends from the root, choosing at each internal node the
// first child whose separating key is strictly greater than the search
// key (right-biased on ties), per spec §4.5.
func (idx *Index) findLeaf(key any) (*node, error) {
	if idx.hdr.RootID == noID {
		return nil, nil
	}
	n, err := idx.readNode(idx.hdr.RootID)
	if err != nil {
		return nil, err
	}
	for !n.isLeaf {
		ci := len(n.keys)
		for i, k := range n.keys {
			if cmp(key, k) < 0 {
				ci = i
				break
			}
		}
		n, err = idx.readNode(n.children[ci])
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Insert finds the target leaf and inserts or overwrites key's position,
// splitting leaves and internal nodes up to the root as needed.
func (idx *Index) Insert(key any, position int64) error {
	if idx.hdr.RootID == noID {
		root := &node{id: idx.allocateNode(), isLeaf: true, parent: noID, nextLeaf: noID}
		root.keys = []any{key}
		root.positions = []int64{position}
		idx.hdr.RootID = root.id
		idx.hdr.Height = 1
		idx.hdr.RecordCnt++
		if err := idx.writeNode(root); err != nil {
			return err
		}
		return idx.writeHeader()
	}

	leaf, err := idx.findLeaf(key)
	if err != nil {
		return err
	}
	// overwrite
	for i, k := range leaf.keys {
		if cmp(k, key) == 0 {
			leaf.positions[i] = position
			return idx.writeNode(leaf)
		}
	}
	// sorted insert
	i := sort.Search(len(leaf.keys), func(i int) bool { return cmp(leaf.keys[i], key) >= 0 })
	leaf.keys = insertAny(leaf.keys, i, key)
	leaf.positions = insertInt64(leaf.positions, i, position)
	idx.hdr.RecordCnt++

	if len(leaf.keys) <= idx.maxKeys {
		return idx.writeNode(leaf)
	}
	return idx.splitLeaf(leaf)
}

func insertAny(s []any, i int, v any) []any {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertInt64(s []int64, i int, v int64) []int64 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertInt32(s []int32, i int, v int32) []int32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func (idx *Index) splitLeaf(leaf *node) error {
	mid := len(leaf.keys) / 2
	right := &node{id: idx.allocateNode(), isLeaf: true, parent: leaf.parent}
	right.keys = append([]any{}, leaf.keys[mid:]...)
	right.positions = append([]int64{}, leaf.positions[mid:]...)
	right.nextLeaf = leaf.nextLeaf

	leaf.keys = leaf.keys[:mid]
	leaf.positions = leaf.positions[:mid]
	leaf.nextLeaf = right.id

	promoted := right.keys[0]

	if err := idx.writeNode(leaf); err != nil {
		return err
	}
	if err := idx.writeNode(right); err != nil {
		return err
	}
	return idx.insertIntoParent(leaf, right, promoted)
}

// insertIntoParent inserts (promoted, rightID) into left's parent, growing
// the tree by one root if left had none.
func (idx *Index) insertIntoParent(left, right *node, promoted any) error {
	if left.parent == noID {
		root := &node{id: idx.allocateNode(), isLeaf: false, parent: noID}
		root.keys = []any{promoted}
		root.children = []int32{left.id, right.id}
		idx.hdr.RootID = root.id
		idx.hdr.Height++
		left.parent = root.id
		right.parent = root.id
		if err := idx.writeNode(left); err != nil {
			return err
		}
		if err := idx.writeNode(right); err != nil {
			return err
		}
		if err := idx.writeNode(root); err != nil {
			return err
		}
		return idx.writeHeader()
	}

	parent, err := idx.readNode(left.parent)
	if err != nil {
		return err
	}
	ci := 0
	for i, c := range parent.children {
		if c == left.id {
			ci = i
			break
		}
	}
	parent.keys = insertAny(parent.keys, ci, promoted)
	parent.children = insertInt32(parent.children, ci+1, right.id)
	right.parent = parent.id
	if err := idx.writeNode(right); err != nil {
		return err
	}

	if len(parent.keys) <= idx.maxKeys {
		return idx.writeNode(parent)
	}
	return idx.splitInternal(parent)
}

func (idx *Index) splitInternal(n *node) error {
	mid := len(n.keys) / 2
	promoted := n.keys[mid]

	right := &node{id: idx.allocateNode(), isLeaf: false, parent: n.parent}
	right.keys = append([]any{}, n.keys[mid+1:]...)
	right.children = append([]int32{}, n.children[mid+1:]...)

	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	for _, cid := range right.children {
		child, err := idx.readNode(cid)
		if err != nil {
			return err
		}
		child.parent = right.id
		if err := idx.writeNode(child); err != nil {
			return err
		}
	}

	if err := idx.writeNode(n); err != nil {
		return err
	}
	if err := idx.writeNode(right); err != nil {
		return err
	}
	return idx.insertIntoParent(n, right, promoted)
}

// Search returns the position mapped to key.
func (idx *Index) Search(key any) (int64, error) {
	leaf, err := idx.findLeaf(key)
	if err != nil {
		return 0, err
	}
	if leaf == nil {
		return 0, index.ErrKeyNotFound
	}
	for i, k := range leaf.keys {
		if cmp(k, key) == 0 {
			return leaf.positions[i], nil
		}
	}
	return 0, index.ErrKeyNotFound
}

// Delete removes key from its leaf. No borrow/merge is performed except
// root collapse when the root becomes an empty internal node, per
// spec §4.5.
func (idx *Index) Delete(key any) error {
	leaf, err := idx.findLeaf(key)
	if err != nil || leaf == nil {
		return err
	}
	for i, k := range leaf.keys {
		if cmp(k, key) == 0 {
			leaf.keys = append(leaf.keys[:i], leaf.keys[i+1:]...)
			leaf.positions = append(leaf.positions[:i], leaf.positions[i+1:]...)
			idx.hdr.RecordCnt--
			if err := idx.writeNode(leaf); err != nil {
				return err
			}
			return idx.collapseRootIfNeeded()
		}
	}
	return nil
}

func (idx *Index) collapseRootIfNeeded() error {
	if idx.hdr.RootID == noID {
		return idx.writeHeader()
	}
	root, err := idx.readNode(idx.hdr.RootID)
	if err != nil {
		return err
	}
	if !root.isLeaf && len(root.keys) == 0 {
		onlyChild := root.children[0]
		child, err := idx.readNode(onlyChild)
		if err != nil {
			return err
		}
		child.parent = noID
		if err := idx.writeNode(child); err != nil {
			return err
		}
		idx.hdr.RootID = onlyChild
		idx.hdr.Height--
		return idx.writeHeader()
	}
	return idx.writeHeader()
}

// All returns every live (key, position) pair in ascending key order, via
// the next-leaf chain.
func (idx *Index) All() ([]index.KeyValue, error) {
	return idx.Range(nil, nil)
}

// Range returns every (key, position) pair with lo <= key <= hi, in
// ascending order. A nil bound is unbounded on that side.
func (idx *Index) Range(lo, hi any) ([]index.KeyValue, error) {
	if idx.hdr.RootID == noID {
		return nil, nil
	}
	leaf, err := idx.firstLeaf(lo)
	if err != nil {
		return nil, err
	}
	var out []index.KeyValue
	for leaf != nil {
		for i, k := range leaf.keys {
			if lo != nil && cmp(k, lo) < 0 {
				continue
			}
			if hi != nil && cmp(k, hi) > 0 {
				return out, nil
			}
			out = append(out, index.KeyValue{Key: k, Position: leaf.positions[i]})
		}
		if leaf.nextLeaf == noID {
			break
		}
		leaf, err = idx.readNode(leaf.nextLeaf)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (idx *Index) firstLeaf(lo any) (*node, error) {
	n, err := idx.readNode(idx.hdr.RootID)
	if err != nil {
		return nil, err
	}
	for !n.isLeaf {
		ci := 0
		if lo != nil {
			ci = len(n.keys)
			for i, k := range n.keys {
				if cmp(lo, k) < 0 {
					ci = i
					break
				}
			}
		}
		n, err = idx.readNode(n.children[ci])
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Height reports the tree's current height (1 for a single leaf root).
func (idx *Index) Height() int { return int(idx.hdr.Height) }

// RecordCount reports the number of live (key, position) entries.
func (idx *Index) RecordCount() int { return int(idx.hdr.RecordCnt) }
