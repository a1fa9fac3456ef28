package utils

import (
	"fmt"
	"strings"
)

func SeenPoolKey(chainId uint64) string {
	return fmt.Sprintf("baseflow:seen_pools:%d", chainId)
}

func ListingChannel(chainId uint64) string {
	return fmt.Sprintf("listings:new:%d", chainId)
}

func PoolMember(poolAddress string) string {
	return strings.ToLower(poolAddress)
}
