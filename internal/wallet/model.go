package wallet

import (
	"math/big"
	"time"
)

// Session is the authenticated link to the user's wallet. The zero value is
// the unset session.
type Session struct {
	Account     string
	BalanceWei  *big.Int
	Balance     string
	ConnectedAt time.Time
}

// Connected reports whether the session holds an account.
func (s Session) Connected() bool {
	return s.Account != ""
}

// TxDescriptor describes a native value transfer handed to a provider for
// signing and broadcast. Amounts are in base units.
type TxDescriptor struct {
	From     string
	To       string
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}
