package encoder

import "math/big"

var bigOne = big.NewInt(1)

func bigIntOf(v int) *big.Int {
	return big.NewInt(int64(v))
}
