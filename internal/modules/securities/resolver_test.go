package securities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		// Shanghai
		{"600000", "sh600000"},
		{"688981", "sh688981"},
		{"900901", "sh900901"},
		{"510300", "sh510300"},
		// Shenzhen
		{"000001", "sz000001"},
		{"300750", "sz300750"},
		{"159915", "sz159915"},
		{"161725", "sz161725"},
		// Beijing
		{"830001", "bj830001"},
		{"430047", "bj430047"},
		// Hong Kong
		{"00700", "hk00700"},
		{"09988", "hk09988"},
		// US
		{"AAPL", "usAAPL"},
		{"msft", "usMSFT"},
		{"BRK.B", "usBRK.B"},
		// Already prefixed
		{"sh000300", "sh000300"},
		{"SZ399006", "sz399006"},
		{"hkHSTECH", "hkHSTECH"},
		{"hk00700", "hk00700"},
		{"usAAPL", "usAAPL"},
		// No market
		{"700001", ""},
		{"12345678", ""},
		{"1234", ""},
		{"", ""},
		{"60000A", ""},
		{".", ""},
		{"..", ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.code))
		})
	}
}

func TestResolve_Stable(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, "sh600000", Resolve("600000"))
		assert.Equal(t, "sz000001", Resolve("000001"))
		assert.Equal(t, "bj830001", Resolve("830001"))
		assert.Equal(t, "hk00700", Resolve("00700"))
		assert.Equal(t, "usAAPL", Resolve("AAPL"))
	}
}

func TestMarketOf(t *testing.T) {
	assert.Equal(t, MarketShanghai, MarketOf("600000"))
	assert.Equal(t, MarketShenzhen, MarketOf("000001"))
	assert.Equal(t, MarketBeijing, MarketOf("830001"))
	assert.Equal(t, MarketHongKong, MarketOf("00700"))
	assert.Equal(t, MarketUS, MarketOf("AAPL"))
	assert.Equal(t, MarketUS, MarketOf("USB"))
	assert.Equal(t, MarketShanghai, MarketOf("SH600000"))
	assert.Equal(t, MarketUnknown, MarketOf("700000"))
}

func TestResolveAll(t *testing.T) {
	got := ResolveAll([]string{"600000", "00700", "700000", "600000"})
	assert.Equal(t, map[string]string{
		"sh600000": "600000",
		"hk00700":  "00700",
	}, got)
}
