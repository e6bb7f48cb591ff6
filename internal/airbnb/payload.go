package airbnb

import (
	"fmt"
	"time"

	"github.com/hostpulse/airbnb-sync/internal/flatten"
)

// 持久化查询哈希, 随 Airbnb 前端版本变化
var persistedQueryHashes = map[flatten.QueryKind]string{
	flatten.QueryKindChart:         "aa6e318cc066bbf19511b86acdce32fc59219d8596448b861d794491f46631c5",
	flatten.QueryKindListOfMetrics: "b22a5ded5e6c6d168f1d224b78f34182e7366e5cc65203ec04f1e718286a09e1",
	flatten.QueryKindListings:      "7a646c07b45ad35335b2cde4842e5c5bf69ccebde508b2ba60276832bfb1816b",
}

var clientNames = map[flatten.QueryKind]string{
	flatten.QueryKindChart:         "web-performance-dash-chart",
	flatten.QueryKindListOfMetrics: "web-performance-dash-metrics",
	flatten.QueryKindListings:      "web-performance-dash-listings",
}

// uiDayOffset Airbnb 仪表盘相对日期偏移量
const uiDayOffset = 3

// Payload GraphQL 请求体
type Payload struct {
	OperationName string     `json:"operationName"`
	Locale        string     `json:"locale"`
	Currency      string     `json:"currency"`
	Variables     Variables  `json:"variables"`
	Extensions    Extensions `json:"extensions"`
}

// Variables 请求变量
type Variables struct {
	Request Request `json:"request"`
}

// Request 请求内容
type Request struct {
	ClientName     string    `json:"clientName"`
	Arguments      Arguments `json:"arguments"`
	UseStubbedData bool      `json:"useStubbedData"`
}

// Arguments 查询参数
type Arguments struct {
	RelativeDsStart      *int     `json:"relativeDsStart,omitempty"`
	RelativeDsEnd        *int     `json:"relativeDsEnd,omitempty"`
	Filters              *Filters `json:"filters,omitempty"`
	MetricType           string   `json:"metricType"`
	MetricComparisonType string   `json:"metricComparisonType,omitempty"`
	GroupBys             []string `json:"groupBys"`
	GroupByValues        []string `json:"groupByValues"`
}

// Filters 房源过滤条件
type Filters struct {
	ListingIDs []string `json:"listingIds"`
}

// Extensions 持久化查询扩展
type Extensions struct {
	PersistedQuery PersistedQuery `json:"persistedQuery"`
}

// PersistedQuery 持久化查询标识
type PersistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

// MetricRequest 单个指标查询请求
type MetricRequest struct {
	Kind        flatten.QueryKind
	ListingID   string
	ListingName string
	WindowStart time.Time
	WindowEnd   time.Time
	MetricType  string
	GroupValues []string
}

// BuildMetricPayload 构建指标查询请求体
// 日期转换为相对 scrapeDay 的偏移量 (+3, 与 Airbnb 仪表盘一致)
func BuildMetricPayload(req MetricRequest, scrapeDay time.Time) (*Payload, error) {
	if req.Kind != flatten.QueryKindChart && req.Kind != flatten.QueryKindListOfMetrics {
		return nil, fmt.Errorf("unsupported query kind: %s", req.Kind)
	}
	if req.ListingID == "" {
		return nil, fmt.Errorf("listing id is required for %s", req.Kind)
	}

	offsetStart := daysBetween(scrapeDay, req.WindowStart) + uiDayOffset
	offsetEnd := daysBetween(scrapeDay, req.WindowEnd) + uiDayOffset

	args := Arguments{
		RelativeDsStart: &offsetStart,
		RelativeDsEnd:   &offsetEnd,
		Filters:         &Filters{ListingIDs: []string{req.ListingID}},
		MetricType:      req.MetricType,
		GroupBys:        []string{"RATING_CATEGORY"},
		GroupByValues:   req.GroupValues,
	}
	// ChartQuery 附带市场对比
	if req.Kind == flatten.QueryKindChart {
		args.MetricComparisonType = "MARKET"
	}

	return &Payload{
		OperationName: string(req.Kind),
		Locale:        "en",
		Currency:      "USD",
		Variables: Variables{
			Request: Request{
				ClientName: clientNames[req.Kind],
				Arguments:  args,
			},
		},
		Extensions: Extensions{
			PersistedQuery: PersistedQuery{Version: 1, SHA256Hash: persistedQueryHashes[req.Kind]},
		},
	}, nil
}

// BuildListingsPayload 构建房源枚举请求体
func BuildListingsPayload() *Payload {
	return &Payload{
		OperationName: string(flatten.QueryKindListings),
		Locale:        "en",
		Currency:      "USD",
		Variables: Variables{
			Request: Request{
				ClientName: clientNames[flatten.QueryKindListings],
				Arguments: Arguments{
					MetricType:    "CONVERSION",
					GroupBys:      []string{"RATING_CATEGORY"},
					GroupByValues: []string{"occupancy_rate"},
				},
			},
		},
		Extensions: Extensions{
			PersistedQuery: PersistedQuery{Version: 1, SHA256Hash: persistedQueryHashes[flatten.QueryKindListings]},
		},
	}
}

// EndpointPath 查询对应的 API 路径
func EndpointPath(kind flatten.QueryKind) string {
	return fmt.Sprintf("/api/v3/%s/%s", kind, persistedQueryHashes[kind])
}

func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}
