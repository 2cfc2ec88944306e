package ethereum

import (
	"fmt"
)

type Network struct {
	ID       int64
	Name     string
	Currency string
}

var networkMap = map[int64]Network{
	1:        {ID: 1, Name: "mainnet", Currency: "ETH"},
	10:       {ID: 10, Name: "optimism", Currency: "ETH"},
	56:       {ID: 56, Name: "bsc", Currency: "BNB"},
	100:      {ID: 100, Name: "gnosis", Currency: "xDAI"},
	137:      {ID: 137, Name: "polygon", Currency: "POL"},
	8453:     {ID: 8453, Name: "base", Currency: "ETH"},
	42161:    {ID: 42161, Name: "arbitrum", Currency: "ETH"},
	43114:    {ID: 43114, Name: "avalanche", Currency: "AVAX"},
	11155111: {ID: 11155111, Name: "sepolia", Currency: "ETH"},
	17000:    {ID: 17000, Name: "holesky", Currency: "ETH"},
	560048:   {ID: 560048, Name: "hoodi", Currency: "ETH"},
}

// GetNetworkByChainID returns the network information for the given chain ID
func GetNetworkByChainID(chainID int64) (*Network, error) {
	network, exists := networkMap[chainID]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChainID, chainID)
	}

	return &network, nil
}
