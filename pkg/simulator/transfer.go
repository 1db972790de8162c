package simulator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/meridian-fi/vaultsim/pkg/clients/simulation"
	"github.com/meridian-fi/vaultsim/pkg/utils"
)

// TransferEventSignature is keccak256("Transfer(address,address,uint256)"),
// topic[0] of every ERC-20 Transfer log.
var TransferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// DecodeTransferAmount extracts the amount of tokenAddress transferred to
// recipientAddress from raw simulation logs. The recipient is the last 20
// bytes of topics[2]; the amount is the log's data segment. When the call
// moved the token to the recipient more than once, the last transfer wins.
// Pure function: no I/O, no hidden state.
func DecodeTransferAmount(logs []*simulation.EventLog, tokenAddress string, recipientAddress string) (*big.Int, error) {
	recipient := common.HexToAddress(recipientAddress)

	var amount *big.Int
	for _, lg := range logs {
		if !utils.AreAddressesEqual(lg.Raw.Address, tokenAddress) {
			continue
		}
		if len(lg.Raw.Topics) < 3 {
			continue
		}
		if common.HexToHash(lg.Raw.Topics[0]) != TransferEventSignature {
			continue
		}
		// topics[2] is the padded "to" address
		if common.HexToAddress(lg.Raw.Topics[2]) != recipient {
			continue
		}

		data, err := hexutil.Decode(lg.Raw.Data)
		if err != nil {
			continue
		}
		amount = new(big.Int).SetBytes(data)
	}

	if amount == nil {
		return nil, &NoTransferLogError{
			TokenAddress:     tokenAddress,
			RecipientAddress: recipientAddress,
		}
	}
	return amount, nil
}
