package osc

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// NumChannels is the number of channel send levels in the catalog
	NumChannels = 32

	// NumBuses is the number of bus faders in the catalog
	NumBuses = 16
)

// ChannelLevel returns the address of channel n's send level. Channel n
// always targets mix n.
func ChannelLevel(n int) string {
	return fmt.Sprintf("/ch/%02d/mix/%02d/level", n, n)
}

// BusFader returns the address of bus n's fader
func BusFader(n int) string {
	return fmt.Sprintf("/bus/%d/mix/fader", n)
}

var catalog = buildCatalog()

func buildCatalog() []string {
	addrs := make([]string, 0, NumChannels+NumBuses)
	for i := 1; i <= NumChannels; i++ {
		addrs = append(addrs, ChannelLevel(i))
	}
	for i := 1; i <= NumBuses; i++ {
		addrs = append(addrs, BusFader(i))
	}
	return addrs
}

// Catalog returns the fixed list of mixer addresses offered for new mappings
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// ResolveAddress accepts either a 1-based catalog index or an OSC address
func ResolveAddress(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/") {
		return s, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > len(catalog) {
		return "", false
	}
	return catalog[n-1], true
}
