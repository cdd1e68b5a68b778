package binance

import "time"

// Config 描述 Binance Source 运行所需的参数。
// 公开行情接口不需要 API key，留空即可。
type Config struct {
	APIKey      string
	APISecret   string
	HTTPTimeout time.Duration
	// ReconnectBackoff WS 断开后的重连等待上限。
	ReconnectBackoff time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.ReconnectBackoff <= 0 {
		out.ReconnectBackoff = 30 * time.Second
	}
	return out
}
