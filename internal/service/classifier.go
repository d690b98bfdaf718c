package service

import (
	"sort"
	"strings"

	"github.com/portfolio-engine/internal/types"
)

// MetadataAssetType is the metadata key that pins an asset's type explicitly
const MetadataAssetType = "assetType"

// assetTypeKeywords lists lowercase substrings per category.
// Matching walks types.AllAssetTypes in order, so the first matching category wins:
// "Gold Bond ETF" is a bond, not a commodity.
var assetTypeKeywords = map[types.AssetType][]string{
	types.AssetRealEstate: {"real estate", "real-estate", "realestate", "property", "apartment", "house", "reit", "condo", "villa", "building"},
	types.AssetNFT:        {"nft", "collectible", "erc721", "erc-721", "erc1155", "erc-1155", "punks", "bored ape"},
	types.AssetBond:       {"bond", "treasury", "t-bill", "tbill", "fixed income", "gilt"},
	types.AssetCommodity:  {"gold", "silver", "platinum", "oil", "commodity", "paxg", "xaut"},
	types.AssetEquity:     {"stock", "equity", "shares", "etf", "nasdaq", "s&p"},
}

// ClassifyAsset infers the asset type of a holding.
// A valid metadata["assetType"] is authoritative; otherwise name, symbol and metadata
// values are matched case-insensitively against category keywords, falling back to crypto.
func ClassifyAsset(name, symbol string, metadata map[string]string) types.AssetType {
	if pinned := types.AssetType(strings.ToLower(strings.TrimSpace(metadata[MetadataAssetType]))); pinned.IsValid() {
		return pinned
	}

	haystack := classificationText(name, symbol, metadata)
	for _, assetType := range types.AllAssetTypes {
		for _, keyword := range assetTypeKeywords[assetType] {
			if strings.Contains(haystack, keyword) {
				return assetType
			}
		}
	}
	return types.AssetCrypto
}

func classificationText(name, symbol string, metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if k != MetadataAssetType {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := []string{name, symbol}
	for _, k := range keys {
		parts = append(parts, metadata[k])
	}
	return strings.ToLower(strings.Join(parts, " | "))
}
