// Package flatten 将 Airbnb GraphQL 响应展开并归一化为宽表行
package flatten

import (
	"encoding/json"
	"time"
)

// QueryKind Airbnb GraphQL 查询类型
type QueryKind string

const (
	QueryKindChart         QueryKind = "ChartQuery"
	QueryKindListOfMetrics QueryKind = "ListOfMetricsQuery"
	QueryKindListings      QueryKind = "ListingsSectionQuery"
)

// ChunkMeta 指标数据块的请求元信息
type ChunkMeta struct {
	Kind        QueryKind
	ListingID   string
	ListingName string
	MetricType  string
	GroupValues []string
	WindowStart time.Time
	WindowEnd   time.Time
}

// Chunk 单次指标查询的原始响应
type Chunk struct {
	Meta ChunkMeta
	Raw  json.RawMessage
}

// Listing 账户名下的房源
type Listing struct {
	ID           string
	InternalName string
}

// QuerySpec 查询类型的拉取与展开参数
type QuerySpec struct {
	// 子窗口天数: ChartQuery 按 28 天拉取, ListOfMetricsQuery 按 7 天
	WindowDays int
	Flatten    func(raw json.RawMessage) (*FlatChunk, error)
}

// Specs 指标查询类型的声明式参数表
var Specs = map[QueryKind]QuerySpec{
	QueryKindChart:         {WindowDays: 28, Flatten: FlattenChart},
	QueryKindListOfMetrics: {WindowDays: 7, Flatten: FlattenMetricList},
}
