package domain

// ChainID identifies the network the contracts live on.
type ChainID string

const (
	ChainIDEthereum ChainID = "1"
	ChainIDPolygon  ChainID = "137"
	ChainIDBase     ChainID = "8453"
	ChainIDSepolia  ChainID = "11155111"
)

// ChainName is the internal code used in cache keys and metrics labels.
type ChainName string

const (
	ChainNameEthereum ChainName = "ETHEREUM_MAINNET"
	ChainNamePolygon  ChainName = "POLYGON_MAINNET"
	ChainNameBase     ChainName = "BASE_MAINNET"
	ChainNameSepolia  ChainName = "ETHEREUM_SEPOLIA"
)

// ChainIDToName maps ChainID to its internal code.
var ChainIDToName = map[ChainID]ChainName{
	ChainIDEthereum: ChainNameEthereum,
	ChainIDPolygon:  ChainNamePolygon,
	ChainIDBase:     ChainNameBase,
	ChainIDSepolia:  ChainNameSepolia,
}

// Name returns the internal code for the chain, or the raw id when unknown.
func (id ChainID) Name() string {
	if n, ok := ChainIDToName[id]; ok {
		return string(n)
	}
	return string(id)
}
