package chainReader

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/meridian-fi/vaultsim/pkg/clients/ethereum"
	"github.com/meridian-fi/vaultsim/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PopulatedTransaction carries the gas fields of a prepared transaction,
// used to fill a simulation request.
type PopulatedTransaction struct {
	GasLimit uint64
	GasPrice *big.Int
}

// IChainReader defines the on-chain reads the simulation engine needs.
type IChainReader interface {
	// GetAllowance fetches the current ERC-20 allowance owner has granted spender
	GetAllowance(ctx context.Context, owner string, token string, spender string) (*big.Int, error)

	// GetUnderlyingAsset fetches the vault's underlying token address
	GetUnderlyingAsset(ctx context.Context, vault string) (string, error)

	// PopulateTransaction estimates gas fields for the given call
	PopulateTransaction(ctx context.Context, from string, to string, data string, value *big.Int) (*PopulatedTransaction, error)
}

const erc20AbiJson = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const vaultAbiJson = `[
	{"constant":true,"inputs":[],"name":"token","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"asset","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"amount","type":"uint256"}],"name":"deposit","outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"maxShares","type":"uint256"}],"name":"withdraw","outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
]`

var (
	Erc20Abi abi.ABI
	VaultAbi abi.ABI
)

func init() {
	var err error
	Erc20Abi, err = abi.JSON(strings.NewReader(erc20AbiJson))
	if err != nil {
		panic(err)
	}
	VaultAbi, err = abi.JSON(strings.NewReader(vaultAbiJson))
	if err != nil {
		panic(err)
	}
}

// ChainReader implements IChainReader over the JSON-RPC client.
type ChainReader struct {
	client *ethereum.Client
	logger *zap.Logger
}

func NewChainReader(client *ethereum.Client, l *zap.Logger) *ChainReader {
	return &ChainReader{
		client: client,
		logger: l,
	}
}

func (cr *ChainReader) GetAllowance(ctx context.Context, owner string, token string, spender string) (*big.Int, error) {
	data, err := Erc20Abi.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack allowance call")
	}

	out, err := cr.client.Call(ctx, token, utils.ConvertBytesToString(data))
	if err != nil {
		return nil, errors.Wrap(err, "allowance call failed")
	}

	return parseUint256(out)
}

// GetUnderlyingAsset reads the vault's underlying token. Older vaults expose
// it as token(), newer ones as asset(); try both before giving up.
func (cr *ChainReader) GetUnderlyingAsset(ctx context.Context, vault string) (string, error) {
	for _, method := range []string{"token", "asset"} {
		data, err := VaultAbi.Pack(method)
		if err != nil {
			return "", errors.Wrapf(err, "failed to pack %s call", method)
		}
		out, err := cr.client.Call(ctx, vault, utils.ConvertBytesToString(data))
		if err != nil {
			cr.logger.Sugar().Debugw("Underlying asset probe failed",
				zap.String("vault", vault),
				zap.String("method", method),
				zap.Error(err),
			)
			continue
		}
		address, err := parseAddress(out)
		if err != nil {
			continue
		}
		return address, nil
	}
	return "", fmt.Errorf("vault %s exposes neither token() nor asset()", vault)
}

func (cr *ChainReader) PopulateTransaction(ctx context.Context, from string, to string, data string, value *big.Int) (*PopulatedTransaction, error) {
	gasLimit, err := cr.client.EstimateGas(ctx, from, to, data, value)
	if err != nil {
		return nil, errors.Wrap(err, "gas estimation failed")
	}
	gasPrice, err := cr.client.GasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "gas price fetch failed")
	}
	return &PopulatedTransaction{
		GasLimit: gasLimit,
		GasPrice: gasPrice,
	}, nil
}

func parseUint256(hexOut string) (*big.Int, error) {
	s := strings.TrimPrefix(hexOut, "0x")
	if s == "" {
		return nil, fmt.Errorf("empty call result")
	}
	value, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid uint256 result '%s'", hexOut)
	}
	return value, nil
}

func parseAddress(hexOut string) (string, error) {
	s := strings.TrimPrefix(hexOut, "0x")
	if len(s) < 64 {
		return "", fmt.Errorf("result too short for an address: '%s'", hexOut)
	}
	address := common.HexToAddress("0x" + s[len(s)-40:])
	if address == (common.Address{}) {
		return "", fmt.Errorf("call returned the null address")
	}
	return address.Hex(), nil
}
