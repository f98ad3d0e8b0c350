package vm

import (
	"math/big"

	"github.com/eth2030/eth2030/crypto"
)

// --- p256Verify (address 0x0100) - RIP-7212 ---
// secp256r1 (P-256) signature verification.

const p256VerifyGas = 3450

type p256Verify struct{}

func (c *p256Verify) RequiredGas(input []byte) uint64 { return p256VerifyGas }

// Run verifies a P-256 signature. Input is 160 bytes: hash(32) || r(32) ||
// s(32) || x(32) || y(32). On success returns 32 bytes with the value 1;
// on any failure (malformed input, invalid point, bad signature) it returns
// no output, matching RIP-7212's "empty return on failure" convention.
func (c *p256Verify) Run(input []byte) ([]byte, error) {
	if len(input) != 160 {
		return nil, nil
	}
	hash := input[0:32]
	r := new(big.Int).SetBytes(input[32:64])
	s := new(big.Int).SetBytes(input[64:96])
	x := new(big.Int).SetBytes(input[96:128])
	y := new(big.Int).SetBytes(input[128:160])

	if !crypto.P256Verify(hash, r, s, x, y) {
		return nil, nil
	}
	out := make([]byte, 32)
	out[31] = 1
	return out, nil
}
