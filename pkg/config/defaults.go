package config

// DefaultServices is the registry used when the config file declares none.
func DefaultServices() []ServiceConfig {
	return []ServiceConfig{
		{
			Name:              "Signal Entry & News Scraper",
			Repository:        "tradingview-signal-processor",
			DeploymentURL:     "https://tradingview-signal-processor-production.up.railway.app",
			ExpectedEndpoints: []string{"/webhook", "/health"},
		},
		{
			Name:              "AI Signal Processor",
			Repository:        "tradingview-signal-ai-service",
			DeploymentURL:     "https://tradingview-signal-ai-service-production.up.railway.app",
			ExpectedEndpoints: []string{"/process-signal", "/health"},
		},
	}
}

// DefaultScripts are the functional probes of the downstream services.
func DefaultScripts() []ScriptConfig {
	testSignal := func() map[string]interface{} {
		return map[string]interface{}{"symbol": "BTCUSDT", "interval": "1h", "strategy": "TEST_VALIDATION"}
	}
	return []ScriptConfig{
		{
			Name:           "Signal Entry + News Scraper",
			Base:           "signal_entry",
			Path:           "/webhook",
			Body:           testSignal(),
			RequiredFields: []string{"signalId"},
			IDField:        "signalId",
			FollowUpPath:   "/news/{id}",
		},
		{
			Name:           "AI Signal Processor",
			Base:           "ai",
			Path:           "/process-signal",
			Body:           testSignal(),
			RequiredFields: []string{"analysis", "recommendation"},
		},
		{
			Name: "AI News Processor",
			Base: "news",
			Path: "/process-news",
			Body: map[string]interface{}{
				"articles": []interface{}{
					map[string]interface{}{"title": "Test Article", "content": "This is a test article for validation purposes."},
				},
			},
			RequiredFields: []string{"summary", "sentiment"},
		},
		{
			Name:        "TradingView Chart Service",
			Base:        "chart",
			Path:        "/generate-chart",
			Body:        map[string]interface{}{"symbol": "BTCUSDT", "interval": "1h"},
			AnyOfFields: []string{"imageUrl", "image"},
		},
		{
			Name: "Telegram Send Service",
			Base: "telegram",
			Path: "/send",
			Body: map[string]interface{}{"chatId": "TEST_CHAT_ID", "message": "Test validation message", "type": "validation"},
		},
		{
			Name:       "Subscriber Matcher",
			Base:       "subscriber",
			Path:       "/match",
			Body:       map[string]interface{}{"symbol": "BTCUSDT", "strategy": "TEST_STRATEGY"},
			ArrayField: "subscribers",
		},
	}
}
