// Package countries maps country names to locale slugs and proxy endpoints.
package countries

import (
	"fmt"
	"math/rand"
	"strings"
)

// Slug returns the short locale code for a configured country name, or ""
// when the country is not recognized. Callers must treat "" as "cannot crawl".
func Slug(country string) string {
	switch strings.ToLower(country) {
	case "usa":
		return "US"
	case "canada":
		return "CA"
	case "uk":
		return "GB"
	default:
		return ""
	}
}

// portRange is the inclusive proxy port window for one country. Picking a
// random port inside the window spreads load across the upstream pool without
// any sticky state.
type portRange struct {
	host string
	lo   int
	hi   int
}

var proxyPools = map[string]portRange{
	"US": {host: "us.smartproxy.com", lo: 10001, hi: 10010},
	"CA": {host: "ca.smartproxy.com", lo: 20001, hi: 20010},
	"GB": {host: "gb.smartproxy.com", lo: 30001, hi: 30010},
}

// ProxyEndpoint builds a credentialed proxy URL for the slug. Unknown slugs
// yield "".
func ProxyEndpoint(slug, username, password string) string {
	pool, ok := proxyPools[slug]
	if !ok {
		return ""
	}
	port := pool.lo + rand.Intn(pool.hi-pool.lo+1)
	return fmt.Sprintf("http://%s:%s@%s:%d", username, password, pool.host, port)
}
