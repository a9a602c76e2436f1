// Package avl implements the node-per-slot AVL index: nodes are allocated
// by append into a flat array and never freed; insert and delete rebalance
// on the way up using the four standard rotation cases, per spec §4.7.
package avl

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/jlang/reldb/index"
)

// HeaderSize is the fixed twelve-byte header: root id, node count, max
// key size.
const HeaderSize = 12

const noNode = int32(-1)

// keyExtra is left(4) + right(4) + height(4) + position(8). Positions are
// widened to 8 bytes (the original packs them as a 4-byte int) since heap
// ordinals in this engine are int64.
const keyExtra = 20

// Index is one AVL index's open file handle.
type Index struct {
	f        *os.File
	rootID   int32
	nodeCnt  int32
	maxKey   int
	nodeSize int
	numeric  bool // key domain chosen at CREATE INDEX time, per spec §9
}

// Create initializes a new, empty AVL file. numeric selects the key
// comparison domain (true for SMALLINT/INT/BIGINT/DOUBLE/DECIMAL columns,
// false otherwise) — fixed at creation time rather than guessed per
// comparison, per spec §9's design note.
func Create(path string, maxKeySize int, numeric bool) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	idx := &Index{f: f, rootID: noNode, nodeCnt: 0, maxKey: maxKeySize, numeric: numeric}
	idx.nodeSize = maxKeySize + keyExtra
	if err := idx.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// Open opens an existing AVL file. numeric must match the value it was
// created with (the catalog derives it from the key column's type tag on
// every open).
func Open(path string, maxKeySize int, numeric bool) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	idx := &Index{f: f, maxKey: maxKeySize, numeric: numeric}
	idx.nodeSize = maxKeySize + keyExtra
	if err := idx.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) Close() error { return idx.f.Close() }

func (idx *Index) writeHeader() error {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(idx.rootID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(idx.nodeCnt))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(idx.maxKey))
	_, err := idx.f.WriteAt(buf, 0)
	return err
}

func (idx *Index) readHeader() error {
	buf := make([]byte, HeaderSize)
	if _, err := idx.f.ReadAt(buf, 0); err != nil {
		return err
	}
	idx.rootID = int32(binary.LittleEndian.Uint32(buf[0:4]))
	idx.nodeCnt = int32(binary.LittleEndian.Uint32(buf[4:8]))
	idx.maxKey = int(binary.LittleEndian.Uint32(buf[8:12]))
	idx.nodeSize = idx.maxKey + keyExtra
	return nil
}

type node struct {
	id     int32
	key    string
	left   int32
	right  int32
	height int32
	pos    int64
}

func (idx *Index) nodeOffset(id int32) int64 {
	return HeaderSize + int64(id)*int64(idx.nodeSize)
}

func (idx *Index) readNode(id int32) (*node, error) {
	buf := make([]byte, idx.nodeSize)
	if _, err := idx.f.ReadAt(buf, idx.nodeOffset(id)); err != nil {
		return nil, err
	}
	keyBytes := rstripNul(buf[:idx.maxKey])
	rest := buf[idx.maxKey:]
	n := &node{
		id:     id,
		key:    string(keyBytes),
		left:   int32(binary.LittleEndian.Uint32(rest[0:4])),
		right:  int32(binary.LittleEndian.Uint32(rest[4:8])),
		height: int32(binary.LittleEndian.Uint32(rest[8:12])),
		pos:    int64(binary.LittleEndian.Uint64(rest[12:20])),
	}
	return n, nil
}

func (idx *Index) writeNode(n *node) error {
	if len(n.key) > idx.maxKey {
		return fmt.Errorf("%w: key %q exceeds %d bytes", ErrKeyTooLong, n.key, idx.maxKey)
	}
	buf := make([]byte, idx.nodeSize)
	copy(buf, n.key)
	rest := buf[idx.maxKey:]
	binary.LittleEndian.PutUint32(rest[0:4], uint32(n.left))
	binary.LittleEndian.PutUint32(rest[4:8], uint32(n.right))
	binary.LittleEndian.PutUint32(rest[8:12], uint32(n.height))
	binary.LittleEndian.PutUint64(rest[12:20], uint64(n.pos))
	_, err := idx.f.WriteAt(buf, idx.nodeOffset(n.id))
	return err
}

func rstripNul(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

func (idx *Index) allocate(key string, pos int64) (int32, error) {
	id := idx.nodeCnt
	idx.nodeCnt++
	n := &node{id: id, key: key, left: noNode, right: noNode, height: 1, pos: pos}
	if err := idx.writeNode(n); err != nil {
		return 0, err
	}
	return id, nil
}

// keyDomain renders a Go value into this index's comparison domain: a
// numeric string (left-padded is not needed since compare() parses it
// back to a number) for numeric columns, or its natural string form
// otherwise.
func (idx *Index) keyDomain(key any) string {
	return fmt.Sprint(key)
}

func (idx *Index) compare(a, b string) int {
	if idx.numeric {
		return index.Compare(parseNumeric(a), parseNumeric(b))
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func parseNumeric(s string) any {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err == nil {
		return f
	}
	return s
}

func (idx *Index) height(id int32) (int32, error) {
	if id == noNode {
		return 0, nil
	}
	n, err := idx.readNode(id)
	if err != nil {
		return 0, err
	}
	return n.height, nil
}

func (idx *Index) updateHeight(n *node) error {
	lh, err := idx.height(n.left)
	if err != nil {
		return err
	}
	rh, err := idx.height(n.right)
	if err != nil {
		return err
	}
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
	return nil
}

func (idx *Index) balance(n *node) (int32, error) {
	lh, err := idx.height(n.left)
	if err != nil {
		return 0, err
	}
	rh, err := idx.height(n.right)
	if err != nil {
		return 0, err
	}
	return lh - rh, nil
}

// Insert maps key to position via standard AVL recursive insert and
// rebalance, per spec §4.7.
func (idx *Index) Insert(key any, position int64) error {
	k := idx.keyDomain(key)
	if len(k) > idx.maxKey {
		return fmt.Errorf("%w: key %q exceeds %d bytes", ErrKeyTooLong, k, idx.maxKey)
	}
	if idx.rootID == noNode {
		id, err := idx.allocate(k, position)
		if err != nil {
			return err
		}
		idx.rootID = id
		return idx.writeHeader()
	}
	newRoot, err := idx.insertRec(idx.rootID, k, position)
	if err != nil {
		return err
	}
	idx.rootID = newRoot
	return idx.writeHeader()
}

func (idx *Index) insertRec(id int32, key string, position int64) (int32, error) {
	n, err := idx.readNode(id)
	if err != nil {
		return 0, err
	}
	c := idx.compare(key, n.key)
	switch {
	case c == 0:
		n.pos = position
		return id, idx.writeNode(n)
	case c < 0:
		if n.left == noNode {
			newID, err := idx.allocate(key, position)
			if err != nil {
				return 0, err
			}
			n.left = newID
		} else {
			newLeft, err := idx.insertRec(n.left, key, position)
			if err != nil {
				return 0, err
			}
			n.left = newLeft
		}
	default:
		if n.right == noNode {
			newID, err := idx.allocate(key, position)
			if err != nil {
				return 0, err
			}
			n.right = newID
		} else {
			newRight, err := idx.insertRec(n.right, key, position)
			if err != nil {
				return 0, err
			}
			n.right = newRight
		}
	}
	if err := idx.updateHeight(n); err != nil {
		return 0, err
	}
	if err := idx.writeNode(n); err != nil {
		return 0, err
	}
	return idx.rebalance(n)
}

// rebalance applies the four AVL rotation cases at n if |balance| > 1.
func (idx *Index) rebalance(n *node) (int32, error) {
	bal, err := idx.balance(n)
	if err != nil {
		return 0, err
	}
	if bal > 1 {
		leftBal, err := idx.balanceOf(n.left)
		if err != nil {
			return 0, err
		}
		if leftBal < 0 {
			newLeft, err := idx.rotateLeft(n.left)
			if err != nil {
				return 0, err
			}
			n.left = newLeft
			if err := idx.writeNode(n); err != nil {
				return 0, err
			}
		}
		return idx.rotateRight(n.id)
	}
	if bal < -1 {
		rightBal, err := idx.balanceOf(n.right)
		if err != nil {
			return 0, err
		}
		if rightBal > 0 {
			newRight, err := idx.rotateRight(n.right)
			if err != nil {
				return 0, err
			}
			n.right = newRight
			if err := idx.writeNode(n); err != nil {
				return 0, err
			}
		}
		return idx.rotateLeft(n.id)
	}
	return n.id, nil
}

func (idx *Index) balanceOf(id int32) (int32, error) {
	n, err := idx.readNode(id)
	if err != nil {
		return 0, err
	}
	return idx.balance(n)
}

func (idx *Index) rotateLeft(xID int32) (int32, error) {
	x, err := idx.readNode(xID)
	if err != nil {
		return 0, err
	}
	y, err := idx.readNode(x.right)
	if err != nil {
		return 0, err
	}
	x.right = y.left
	if err := idx.updateHeight(x); err != nil {
		return 0, err
	}
	if err := idx.writeNode(x); err != nil {
		return 0, err
	}
	y.left = x.id
	if err := idx.updateHeight(y); err != nil {
		return 0, err
	}
	if err := idx.writeNode(y); err != nil {
		return 0, err
	}
	return y.id, nil
}

func (idx *Index) rotateRight(yID int32) (int32, error) {
	y, err := idx.readNode(yID)
	if err != nil {
		return 0, err
	}
	x, err := idx.readNode(y.left)
	if err != nil {
		return 0, err
	}
	y.left = x.right
	if err := idx.updateHeight(y); err != nil {
		return 0, err
	}
	if err := idx.writeNode(y); err != nil {
		return 0, err
	}
	x.right = y.id
	if err := idx.updateHeight(x); err != nil {
		return 0, err
	}
	if err := idx.writeNode(x); err != nil {
		return 0, err
	}
	return x.id, nil
}

// Search returns the position mapped to key via standard BST descent.
func (idx *Index) Search(key any) (int64, error) {
	if idx.rootID == noNode {
		return 0, index.ErrKeyNotFound
	}
	k := idx.keyDomain(key)
	id := idx.rootID
	for id != noNode {
		n, err := idx.readNode(id)
		if err != nil {
			return 0, err
		}
		c := idx.compare(k, n.key)
		switch {
		case c == 0:
			return n.pos, nil
		case c < 0:
			id = n.left
		default:
			id = n.right
		}
	}
	return 0, index.ErrKeyNotFound
}

// Range returns keys in [lo, hi] in ascending order via a pruned in-order
// traversal, per spec §4.7.
func (idx *Index) Range(lo, hi any) ([]index.KeyValue, error) {
	if idx.rootID == noNode {
		return nil, nil
	}
	var out []index.KeyValue
	loK, hiK := idx.keyDomain(lo), idx.keyDomain(hi)
	if err := idx.rangeRec(idx.rootID, loK, hiK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (idx *Index) rangeRec(id int32, lo, hi string, out *[]index.KeyValue) error {
	if id == noNode {
		return nil
	}
	n, err := idx.readNode(id)
	if err != nil {
		return err
	}
	if idx.compare(n.key, lo) > 0 {
		if err := idx.rangeRec(n.left, lo, hi, out); err != nil {
			return err
		}
	}
	if idx.compare(lo, n.key) <= 0 && idx.compare(n.key, hi) <= 0 {
		*out = append(*out, index.KeyValue{Key: n.key, Position: n.pos})
	}
	if idx.compare(n.key, hi) < 0 {
		if err := idx.rangeRec(n.right, lo, hi, out); err != nil {
			return err
		}
	}
	return nil
}

// All returns every key in ascending order.
func (idx *Index) All() ([]index.KeyValue, error) {
	if idx.rootID == noNode {
		return nil, nil
	}
	var out []index.KeyValue
	if err := idx.allRec(idx.rootID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (idx *Index) allRec(id int32, out *[]index.KeyValue) error {
	if id == noNode {
		return nil
	}
	n, err := idx.readNode(id)
	if err != nil {
		return err
	}
	if err := idx.allRec(n.left, out); err != nil {
		return err
	}
	*out = append(*out, index.KeyValue{Key: n.key, Position: n.pos})
	return idx.allRec(n.right, out)
}

// Delete removes key via BST deletion with in-order-successor
// substitution on two-child nodes, rebalancing on the way up. Freed slots
// are not reused, per spec §4.7.
func (idx *Index) Delete(key any) error {
	if idx.rootID == noNode {
		return nil
	}
	k := idx.keyDomain(key)
	newRoot, _, err := idx.deleteRec(idx.rootID, k)
	if err != nil {
		return err
	}
	idx.rootID = newRoot
	return idx.writeHeader()
}

func (idx *Index) deleteRec(id int32, key string) (int32, bool, error) {
	if id == noNode {
		return noNode, false, nil
	}
	n, err := idx.readNode(id)
	if err != nil {
		return 0, false, err
	}
	var deleted bool
	c := idx.compare(key, n.key)
	switch {
	case c < 0:
		newLeft, d, err := idx.deleteRec(n.left, key)
		if err != nil {
			return 0, false, err
		}
		n.left, deleted = newLeft, d
	case c > 0:
		newRight, d, err := idx.deleteRec(n.right, key)
		if err != nil {
			return 0, false, err
		}
		n.right, deleted = newRight, d
	default:
		deleted = true
		if n.left == noNode {
			return n.right, true, nil
		}
		if n.right == noNode {
			return n.left, true, nil
		}
		succ, err := idx.minNode(n.right)
		if err != nil {
			return 0, false, err
		}
		n.key = succ.key
		n.pos = succ.pos
		newRight, _, err := idx.deleteRec(n.right, succ.key)
		if err != nil {
			return 0, false, err
		}
		n.right = newRight
	}
	if !deleted {
		return id, false, nil
	}
	if err := idx.updateHeight(n); err != nil {
		return 0, false, err
	}
	if err := idx.writeNode(n); err != nil {
		return 0, false, err
	}
	newID, err := idx.rebalance(n)
	return newID, true, err
}

func (idx *Index) minNode(id int32) (*node, error) {
	n, err := idx.readNode(id)
	if err != nil {
		return nil, err
	}
	for n.left != noNode {
		n, err = idx.readNode(n.left)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}
