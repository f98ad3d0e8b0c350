package vm

import (
	"fmt"

	"github.com/eth2030/eth2030/core/types"
)

// DatabaseError reports a failure encountered while the engine's database
// operations (load_account, load_code, sload, access-list warming) read
// from the state database's backing store.
//
// Tolerable is true for a miss that simply means "this address or slot has
// never been touched" — expected and harmless, e.g. during access-list
// pre-warming of an address the transaction declared but never actually
// ends up using. Tolerable is false for a genuine backing-store failure;
// per the engine's failure-propagation contract, that case must bubble out
// as an EVMError::Database and abort the whole transaction rather than be
// swallowed as best-effort.
type DatabaseError struct {
	Addr      types.Address
	Tolerable bool
	Err       error
}

func (e *DatabaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vm: database error for %s: %v", e.Addr.Hex(), e.Err)
	}
	return fmt.Sprintf("vm: database miss for %s", e.Addr.Hex())
}

func (e *DatabaseError) Unwrap() error { return e.Err }
