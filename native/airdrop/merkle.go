package airdrop

import (
	"bytes"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Leaf hashes one allocation as keccak256(account || uint256(amount)).
func Leaf(account ethcommon.Address, amount *big.Int) (ethcommon.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return ethcommon.Hash{}, ErrInvalidAmount
	}
	word, overflow := uint256.FromBig(amount)
	if overflow {
		return ethcommon.Hash{}, ErrInvalidAmount
	}
	buf := word.Bytes32()
	return ethcrypto.Keccak256Hash(account.Bytes(), buf[:]), nil
}

// hashPair hashes two nodes in ascending byte order so proofs need no
// left/right flags.
func hashPair(a, b ethcommon.Hash) ethcommon.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return ethcrypto.Keccak256Hash(a[:], b[:])
}

// Verify reports whether proof links leaf to root.
func Verify(root, leaf ethcommon.Hash, proof []ethcommon.Hash) bool {
	node := leaf
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

// Tree is a sorted-pair Merkle tree over allocation leaves. An odd node at the
// end of a level is promoted unchanged.
type Tree struct {
	levels [][]ethcommon.Hash
}

// NewTree builds a tree over leaves in the given order.
func NewTree(leaves []ethcommon.Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}
	level := append([]ethcommon.Hash(nil), leaves...)
	t := &Tree{levels: [][]ethcommon.Hash{level}}
	for len(level) > 1 {
		next := make([]ethcommon.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Root returns the tree root, or the zero hash for an empty tree.
func (t *Tree) Root() ethcommon.Hash {
	if t == nil || len(t.levels) == 0 {
		return ethcommon.Hash{}
	}
	return t.levels[len(t.levels)-1][0]
}

// Proof returns the sibling path for the leaf at index.
func (t *Tree) Proof(index int) []ethcommon.Hash {
	if t == nil || len(t.levels) == 0 || index < 0 || index >= len(t.levels[0]) {
		return nil
	}
	var proof []ethcommon.Hash
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index /= 2
	}
	return proof
}
