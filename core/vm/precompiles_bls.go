package vm

import "github.com/eth2030/eth2030/crypto"

// EIP-2537 BLS12-381 precompile addresses (0x0b - 0x13).
// These precompiles provide native support for BLS12-381 curve operations,
// enabling efficient BLS signature verification and other pairing-based
// cryptographic schemes on-chain.

// BLS12-381 precompile gas costs per EIP-2537.
const (
	bls12G1AddGas          = 500
	bls12G1MulGas          = 12000
	bls12G2AddGas          = 800
	bls12G2MulGas          = 45000
	bls12PairingBaseGas    = 65000
	bls12PairingPerPairGas = 43000
	bls12MapG1Gas          = 5500
	bls12MapG2Gas          = 75000
	bls12G1MSMBaseGas      = 12000
	bls12G2MSMBaseGas      = 45000
)

// Point sizes for BLS12-381 (uncompressed, zero-padded to 64/128 bytes).
const (
	bls12G1PointSize = 128 // 2 * 64 bytes (Fp padded to 64)
	bls12G2PointSize = 256 // 2 * 128 bytes (Fp2 elements padded to 128)
	bls12ScalarSize  = 32  // Fr scalar
)

// --- bls12G1Add (address 0x0b) ---

type bls12G1Add struct{}

func (c *bls12G1Add) RequiredGas(input []byte) uint64 { return bls12G1AddGas }

func (c *bls12G1Add) Run(input []byte) ([]byte, error) { return crypto.BLS12G1Add(input) }

// --- bls12G1Mul (address 0x0c) ---

type bls12G1Mul struct{}

func (c *bls12G1Mul) RequiredGas(input []byte) uint64 { return bls12G1MulGas }

func (c *bls12G1Mul) Run(input []byte) ([]byte, error) { return crypto.BLS12G1Mul(input) }

// --- bls12G1MSM (address 0x0d) ---

type bls12G1MSM struct{}

func (c *bls12G1MSM) RequiredGas(input []byte) uint64 {
	pairSize := bls12G1PointSize + bls12ScalarSize
	k := uint64(len(input)) / uint64(pairSize)
	if k == 0 {
		return 0
	}
	// Discount table per EIP-2537.
	discount := msmDiscount(k)
	return (bls12G1MSMBaseGas * k * discount) / 1000
}

func (c *bls12G1MSM) Run(input []byte) ([]byte, error) { return crypto.BLS12G1MSM(input) }

// --- bls12G2Add (address 0x0e) ---

type bls12G2Add struct{}

func (c *bls12G2Add) RequiredGas(input []byte) uint64 { return bls12G2AddGas }

func (c *bls12G2Add) Run(input []byte) ([]byte, error) { return crypto.BLS12G2Add(input) }

// --- bls12G2Mul (address 0x0f) ---

type bls12G2Mul struct{}

func (c *bls12G2Mul) RequiredGas(input []byte) uint64 { return bls12G2MulGas }

func (c *bls12G2Mul) Run(input []byte) ([]byte, error) { return crypto.BLS12G2Mul(input) }

// --- bls12G2MSM (address 0x10) ---

type bls12G2MSM struct{}

func (c *bls12G2MSM) RequiredGas(input []byte) uint64 {
	pairSize := bls12G2PointSize + bls12ScalarSize
	k := uint64(len(input)) / uint64(pairSize)
	if k == 0 {
		return 0
	}
	discount := msmDiscount(k)
	return (bls12G2MSMBaseGas * k * discount) / 1000
}

func (c *bls12G2MSM) Run(input []byte) ([]byte, error) { return crypto.BLS12G2MSM(input) }

// --- bls12Pairing (address 0x11) ---

type bls12Pairing struct{}

func (c *bls12Pairing) RequiredGas(input []byte) uint64 {
	pairSize := bls12G1PointSize + bls12G2PointSize
	k := uint64(len(input)) / uint64(pairSize)
	return bls12PairingBaseGas + bls12PairingPerPairGas*k
}

func (c *bls12Pairing) Run(input []byte) ([]byte, error) { return crypto.BLS12Pairing(input) }

// --- bls12MapFpToG1 (address 0x12) ---

type bls12MapFpToG1 struct{}

func (c *bls12MapFpToG1) RequiredGas(input []byte) uint64 { return bls12MapG1Gas }

func (c *bls12MapFpToG1) Run(input []byte) ([]byte, error) { return crypto.BLS12MapFpToG1(input) }

// --- bls12MapFp2ToG2 (address 0x13) ---

type bls12MapFp2ToG2 struct{}

func (c *bls12MapFp2ToG2) RequiredGas(input []byte) uint64 { return bls12MapG2Gas }

func (c *bls12MapFp2ToG2) Run(input []byte) ([]byte, error) { return crypto.BLS12MapFp2ToG2(input) }

// isZeroBytes reports whether every byte in b is zero.
func isZeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// msmDiscount returns the MSM discount factor (per 1000) for k pairs.
// From EIP-2537 discount table.
func msmDiscount(k uint64) uint64 {
	if k == 0 {
		return 0
	}
	discountTable := []uint64{
		0, 1200, 888, 764, 641, 594, 547, 500, 453, 438,
		423, 408, 394, 379, 364, 349, 334, 330, 326, 322,
		318, 314, 310, 306, 302, 298, 294, 289, 285, 281,
		277, 273, 269, 265, 261, 257, 253, 249, 245, 241,
		237, 234, 230, 226, 222, 218, 214, 210, 206, 202,
		199, 195, 191, 187, 183, 179, 176, 172, 168, 164,
		160, 157, 153, 149, 145, 141, 138, 134, 130, 126,
		123, 119, 115, 111, 107, 104, 100, 96, 92, 89,
		85, 81, 77, 73, 70, 66, 62, 58, 55, 51,
		47, 43, 39, 36, 32, 28, 24, 21, 17, 13,
		9, 6, 2, 2, 2, 2, 2, 2, 2, 2,
		2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
		2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	}
	if k >= uint64(len(discountTable)) {
		return 2 // minimum discount
	}
	return discountTable[k]
}
