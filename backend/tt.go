package main

import (
	"encoding/binary"
	"sync"

	"github.com/notnil/chess"
)

// MoveHintTable remembers the best move found for a position so deeper
// iterations can search it first. It never short-circuits a node with a
// stored value; the returned evaluation of every completed depth stays an
// exact minimax value.
type hintEntry struct {
	key   [16]byte
	from  chess.Square
	to    chess.Square
	promo chess.PieceType
	depth int8
	gen   uint32
	valid bool
}

type MoveHintTable struct {
	mu      sync.Mutex
	entries []hintEntry
	mask    uint64
	gen     uint32
}

func NewMoveHintTable(size int) *MoveHintTable {
	n := nextPowerOfTwo(uint64(size))
	return &MoveHintTable{
		entries: make([]hintEntry, n),
		mask:    n - 1,
		gen:     1,
	}
}

func (t *MoveHintTable) index(key [16]byte) uint64 {
	return binary.LittleEndian.Uint64(key[:8]) & t.mask
}

// NextGeneration ages the table between searches; stale entries lose
// replacement priority but stay probeable.
func (t *MoveHintTable) NextGeneration() {
	t.mu.Lock()
	t.gen++
	if t.gen == 0 {
		t.gen = 1
	}
	t.mu.Unlock()
}

func (t *MoveHintTable) Store(key [16]byte, depth int, move *chess.Move) {
	if move == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := &t.entries[t.index(key)]
	if slot.valid && slot.key == key && int(slot.depth) >= depth && slot.gen == t.gen {
		return
	}
	if slot.valid && slot.key != key && slot.gen == t.gen && int(slot.depth) > depth {
		return
	}
	slot.key = key
	slot.from = move.S1()
	slot.to = move.S2()
	slot.promo = move.Promo()
	slot.depth = int8(depth)
	slot.gen = t.gen
	slot.valid = true
}

// Probe returns the remembered best move for the position, matched
// against the current legal move set by the caller.
func (t *MoveHintTable) Probe(key [16]byte, legal []*chess.Move) *chess.Move {
	t.mu.Lock()
	slot := t.entries[t.index(key)]
	t.mu.Unlock()
	if !slot.valid || slot.key != key {
		return nil
	}
	for _, m := range legal {
		if m.S1() == slot.from && m.S2() == slot.to && m.Promo() == slot.promo {
			return m
		}
	}
	return nil
}

func (t *MoveHintTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for i := range t.entries {
		if t.entries[i].valid {
			count++
		}
	}
	return count
}

func nextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}
