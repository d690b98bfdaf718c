package service

import (
	"testing"

	"github.com/portfolio-engine/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestClassifyAsset(t *testing.T) {
	tests := []struct {
		name     string
		asset    string
		symbol   string
		metadata map[string]string
		want     types.AssetType
	}{
		{"real estate by name", "Downtown Apartment", "DTA", nil, types.AssetRealEstate},
		{"case insensitive", "MIAMI CONDO TOKEN", "", nil, types.AssetRealEstate},
		{"nft by metadata value", "Punk #42", "PUNK", map[string]string{"standard": "ERC721"}, types.AssetNFT},
		{"bond", "US Treasury Bill 2025", "TBILL", nil, types.AssetBond},
		{"commodity by symbol", "Pax Gold", "PAXG", nil, types.AssetCommodity},
		{"equity", "Tokenized Apple Stock", "AAPLx", nil, types.AssetEquity},
		{"crypto fallback", "Wrapped Ether", "WETH", nil, types.AssetCrypto},
		{"empty input", "", "", nil, types.AssetCrypto},
		{"bond outranks commodity", "Gold Bond ETF", "GBE", nil, types.AssetBond},
		{"real estate outranks nft", "Villa NFT", "VNFT", nil, types.AssetRealEstate},
		{"explicit type wins", "Gold Reserve", "GLD", map[string]string{MetadataAssetType: "equity"}, types.AssetEquity},
		{"explicit type is case insensitive", "Token", "TKN", map[string]string{MetadataAssetType: " NFT "}, types.AssetNFT},
		{"invalid explicit type is ignored", "Oil Barrel Token", "OIL", map[string]string{MetadataAssetType: "stocks"}, types.AssetCommodity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAsset(tt.asset, tt.symbol, tt.metadata))
		})
	}
}
