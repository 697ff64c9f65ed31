package solana

import (
	"net/url"
	"strings"
)

// ExplorerURL links an address on the Solana explorer. Mainnet omits the cluster.
func ExplorerURL(address, cluster string) string {
	u := "https://explorer.solana.com/address/" + url.PathEscape(strings.TrimSpace(address))
	switch c := strings.ToLower(strings.TrimSpace(cluster)); c {
	case "", "mainnet", "mainnet-beta":
		return u
	default:
		return u + "?cluster=" + url.QueryEscape(c)
	}
}

func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(LamportsPerSOL)
}
