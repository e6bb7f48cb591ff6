package flatten

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TimeseriesRow ChartQuery 单个数据点
type TimeseriesRow struct {
	Granularity string
	Ds          string
	Value       *float64
	ValueString *string
	SourceLabel string
}

// SummaryMetric 窗口级汇总指标
type SummaryMetric struct {
	MetricName        string
	Value             *float64
	ValueString       *string
	ValueChange       *float64
	ValueChangeString *string
}

// FlatChunk 展开后的指标数据块
type FlatChunk struct {
	Meta             ChunkMeta
	TimeseriesRows   []TimeseriesRow
	PrimaryMetric    *SummaryMetric
	SecondaryMetrics []SummaryMetric
	Metrics          []SummaryMetric
}

// FlattenChart 展开 ChartQuery 响应: 时间序列 + 主指标 + 次级指标
func FlattenChart(raw json.RawMessage) (*FlatChunk, error) {
	comp, err := Component(raw)
	if err != nil {
		return nil, err
	}

	chunk := &FlatChunk{}
	for _, chart := range comp.MetricLineCharts {
		for _, point := range chart.DataPoints {
			chunk.TimeseriesRows = append(chunk.TimeseriesRows, TimeseriesRow{
				Granularity: chart.Granularity,
				Ds:          point.Ds,
				Value:       point.Value.Float64(),
				ValueString: point.ValueString,
				SourceLabel: chart.Label,
			})
		}
	}

	if comp.PrimaryMetric != nil {
		chunk.PrimaryMetric = &SummaryMetric{
			MetricName:        comp.PrimaryMetric.MetricName,
			Value:             comp.PrimaryMetric.Value.Float64(),
			ValueString:       comp.PrimaryMetric.ValueString,
			ValueChange:       comp.PrimaryMetric.ValueChange.Float64(),
			ValueChangeString: comp.PrimaryMetric.ValueChangeString,
		}
	}

	for _, m := range comp.SecondaryMetrics {
		chunk.SecondaryMetrics = append(chunk.SecondaryMetrics, SummaryMetric{
			MetricName:  m.MetricName,
			Value:       m.Value.Float64(),
			ValueString: m.ValueString,
		})
	}

	return chunk, nil
}

// FlattenMetricList 展开 ListOfMetricsQuery 响应: 每个指标一行
func FlattenMetricList(raw json.RawMessage) (*FlatChunk, error) {
	comp, err := Component(raw)
	if err != nil {
		return nil, err
	}

	chunk := &FlatChunk{}
	for _, m := range comp.Metrics {
		chunk.Metrics = append(chunk.Metrics, SummaryMetric{
			MetricName:  m.MetricName,
			Value:       m.Value.Float64(),
			ValueString: m.ValueString,
		})
	}

	return chunk, nil
}

// ExtractListings 从 ListingsSectionQuery 响应提取房源列表
func ExtractListings(raw json.RawMessage) ([]Listing, error) {
	comp, err := Component(raw)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(comp.TableRows))
	for _, row := range comp.TableRows {
		if row.ID == "" {
			return nil, fmt.Errorf("listing row missing id")
		}
		listings = append(listings, Listing{ID: row.ID, InternalName: row.InternalName})
	}
	return listings, nil
}

// Flatten 按查询类型展开数据块
func Flatten(chunk Chunk) (*FlatChunk, error) {
	spec, ok := Specs[chunk.Meta.Kind]
	if !ok {
		return nil, fmt.Errorf("no flattener for query kind %s", chunk.Meta.Kind)
	}
	flat, err := spec.Flatten(chunk.Raw)
	if err != nil {
		return nil, err
	}
	flat.Meta = chunk.Meta
	return flat, nil
}

// sourceTag 数据序列标签归类: "Your listing" → your, 其余 → similar
func sourceTag(label string) string {
	if strings.Contains(strings.ToLower(label), "your") {
		return "your"
	}
	return "similar"
}
