package airbnb

import "net/http"

// 所有 web 客户端共用的公开 API key
const publicAPIKey = "d306zoyjsyarp7ifhu67rjxn52tv0t20"

// Credentials 账户会话凭证
type Credentials struct {
	Cookie         string
	XClientVersion string
	UserAgent      string
	RequestID      string
}

// applyHeaders 设置 Airbnb GraphQL 请求头
func applyHeaders(req *http.Request, creds Credentials) {
	userAgent := creds.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0"
	}

	// 会话与认证
	req.Header.Set("Cookie", creds.Cookie)
	req.Header.Set("X-Airbnb-API-Key", publicAPIKey)
	req.Header.Set("X-CSRF-Without-Token", "1")

	// 客户端上下文
	req.Header.Set("X-Client-Version", creds.XClientVersion)
	if creds.RequestID != "" {
		req.Header.Set("X-Client-Request-Id", creds.RequestID)
	}
	req.Header.Set("User-Agent", userAgent)

	// GraphQL 平台标记
	req.Header.Set("X-Airbnb-GraphQL-Platform", "web")
	req.Header.Set("X-Airbnb-GraphQL-Platform-Client", "minimalist-niobe")
	req.Header.Set("X-Airbnb-Supports-Airlock-V2", "true")
	req.Header.Set("X-Niobe-Short-Circuited", "true")

	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
}
