package airbnb

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

var userAttributesPattern = regexp.MustCompile(`_user_attributes=([^;]+)`)

// ExtractAccountIDFromCookie 从 _user_attributes cookie 中提取 Airbnb 账户ID
//
// cookie 中包含: _user_attributes=%7B%22id_str%22%3A%22310316675%22%2C...
// URL 解码后为: {"id_str":"310316675",...}
func ExtractAccountIDFromCookie(cookie string) (string, error) {
	match := userAttributesPattern.FindStringSubmatch(cookie)
	if match == nil {
		return "", fmt.Errorf("_user_attributes not found in cookie")
	}

	decoded, err := url.QueryUnescape(match[1])
	if err != nil {
		return "", fmt.Errorf("decode _user_attributes: %w", err)
	}

	var attrs struct {
		IDStr string          `json:"id_str"`
		ID    json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal([]byte(decoded), &attrs); err != nil {
		return "", fmt.Errorf("parse _user_attributes: %w", err)
	}

	if attrs.IDStr != "" {
		return attrs.IDStr, nil
	}

	// id 可能是数字或字符串
	if len(attrs.ID) > 0 {
		var asString string
		if err := json.Unmarshal(attrs.ID, &asString); err == nil && asString != "" {
			return asString, nil
		}
		var asNumber int64
		if err := json.Unmarshal(attrs.ID, &asNumber); err == nil && asNumber != 0 {
			return strconv.FormatInt(asNumber, 10), nil
		}
	}

	return "", fmt.Errorf("no id_str or id found in _user_attributes")
}
