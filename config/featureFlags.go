package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EdoDemoFallbackEnabled keeps the optimistic local transition when the signing backend answers
// "not configured". Disabling it turns not-configured into a hard error.
//
// Set via env:
// - EDO_DEMO_FALLBACK=false
func EdoDemoFallbackEnabled() bool {
	return envBoolDefault("EDO_DEMO_FALLBACK", true)
}

// EdoAutoMatchThreshold overrides the minimum top-candidate score for automatic acceptance.
//
// Set via env:
// - EDO_AUTO_MATCH_THRESHOLD=6
func EdoAutoMatchThreshold(def int) int {
	v := strings.TrimSpace(os.Getenv("EDO_AUTO_MATCH_THRESHOLD"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// EdoCatalogCacheTTL controls how long the product catalog stays cached in Redis.
//
// Set via env:
// - EDO_CATALOG_CACHE_TTL_SECONDS=300
func EdoCatalogCacheTTL() time.Duration {
	return time.Duration(intFromEnv("EDO_CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second
}

// DiadocConfigured mirrors the health probe of the EDO connector: both credentials must be set.
func DiadocConfigured() bool {
	return strings.TrimSpace(os.Getenv("DIADOC_API_TOKEN")) != "" && strings.TrimSpace(os.Getenv("DIADOC_BOX_ID")) != ""
}

// EdoWarehouseId names the warehouse receipts are posted to. Empty keeps the session default.
//
// Set via env:
// - EDO_WAREHOUSE_ID=main
func EdoWarehouseId() string {
	return strings.TrimSpace(os.Getenv("EDO_WAREHOUSE_ID"))
}

// EdoSessionIdleTimeout drops console sessions nobody touched for this long.
//
// Set via env:
// - EDO_SESSION_IDLE_MINUTES=120
func EdoSessionIdleTimeout() time.Duration {
	return time.Duration(intFromEnv("EDO_SESSION_IDLE_MINUTES", 120)) * time.Minute
}
