package types

// AccessTuple is a single EIP-2930 access-list entry: an address plus the
// storage slots within it that the transaction declares it will touch.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// AccessList is the EIP-2930 declared access list carried by a transaction.
// Every address and storage key in it is warmed before the transaction's
// first checkpoint, independent of whatever the transaction's execution
// touches on its own.
type AccessList []AccessTuple

// StorageKeys returns the total number of storage keys across all tuples,
// the quantity EIP-2930 charges per-key gas against.
func (al AccessList) StorageKeys() int {
	var n int
	for _, tuple := range al {
		n += len(tuple.StorageKeys)
	}
	return n
}
