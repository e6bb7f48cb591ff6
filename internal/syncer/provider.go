package syncer

import (
	"context"
	"time"

	"github.com/hostpulse/airbnb-sync/internal/airbnb"
	"github.com/hostpulse/airbnb-sync/internal/flatten"
)

// MetricsProvider 指标数据提供者接口
type MetricsProvider interface {
	// FetchListings 枚举账户名下所有房源
	FetchListings(ctx context.Context, creds airbnb.Credentials) ([]flatten.Listing, error)
	// FetchMetricChunk 拉取单个子窗口的指标数据
	FetchMetricChunk(ctx context.Context, creds airbnb.Credentials, req airbnb.MetricRequest, scrapeDay time.Time) (*flatten.Chunk, error)
}

// metricQuery 指标查询参数组合
type metricQuery struct {
	MetricType  string
	GroupValues []string
}

// 每个房源在每种查询类型下拉取的指标组合
var metricQueries = []metricQuery{
	{MetricType: "CONVERSION", GroupValues: []string{"conversion_rate"}},
	{MetricType: "CONVERSION", GroupValues: []string{"p3_impressions"}},
}

// 指标查询类型, 按固定顺序执行
var metricQueryKinds = []flatten.QueryKind{
	flatten.QueryKindChart,
	flatten.QueryKindListOfMetrics,
}
