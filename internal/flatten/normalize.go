package flatten

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hostpulse/airbnb-sync/internal/model"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
)

// Rows 归一化后的三类宽表行, 未填充 account_id 和 scrape_date
type Rows struct {
	ChartQuery    []*model.ChartQueryRow
	ChartSummary  []*model.ChartSummaryRow
	ListOfMetrics []*model.ListOfMetricsRow
}

// Normalize 将展开的数据块按 (房源, 周期) 透视为宽表行
// 分组与输入顺序无关; 输出按周期键排序保证确定性
func Normalize(chunks []*FlatChunk) *Rows {
	rows := &Rows{
		ChartQuery:    pivotChartQuery(chunks),
		ChartSummary:  pivotChartSummary(chunks),
		ListOfMetrics: pivotListOfMetrics(chunks),
	}
	return rows
}

type dailyKey struct {
	listingID string
	ds        string
}

func pivotChartQuery(chunks []*FlatChunk) []*model.ChartQueryRow {
	pivoted := make(map[dailyKey]*model.ChartQueryRow)

	for _, chunk := range chunks {
		if chunk.Meta.Kind != QueryKindChart {
			continue
		}
		metricName := groupMetricName(chunk.Meta)

		for i := range chunk.TimeseriesRows {
			point := &chunk.TimeseriesRows[i]
			key := dailyKey{listingID: chunk.Meta.ListingID, ds: point.Ds}

			row, ok := pivoted[key]
			if !ok {
				metricDate, err := time.Parse("2006-01-02", point.Ds)
				if err != nil {
					logger.Warn("skipping data point with unparseable date",
						zap.String("listing_id", chunk.Meta.ListingID),
						zap.String("ds", point.Ds))
					continue
				}
				row = &model.ChartQueryRow{
					AirbnbListingID:    chunk.Meta.ListingID,
					AirbnbInternalName: optionalName(chunk.Meta.ListingName),
					MetricDate:         metricDate,
				}
				pivoted[key] = row
			}

			setDailyMetric(row, metricName, sourceTag(point.SourceLabel), point)
		}
	}

	rows := make([]*model.ChartQueryRow, 0, len(pivoted))
	for _, row := range pivoted {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AirbnbListingID != rows[j].AirbnbListingID {
			return rows[i].AirbnbListingID < rows[j].AirbnbListingID
		}
		return rows[i].MetricDate.Before(rows[j].MetricDate)
	})
	return rows
}

func setDailyMetric(row *model.ChartQueryRow, metricName, tag string, point *TimeseriesRow) {
	switch {
	case metricName == "conversion_rate" && tag == "your":
		row.ConversionRateYourValue = point.Value
		row.ConversionRateYourValueString = point.ValueString
	case metricName == "conversion_rate" && tag == "similar":
		row.ConversionRateSimilarValue = point.Value
		row.ConversionRateSimilarValueString = point.ValueString
	case metricName == "p3_impressions" && tag == "your":
		row.P3ImpressionsYourValue = coerceInt(point.Value, metricName, row.AirbnbListingID)
		row.P3ImpressionsYourValueString = point.ValueString
	case metricName == "p3_impressions" && tag == "similar":
		row.P3ImpressionsSimilarValue = coerceInt(point.Value, metricName, row.AirbnbListingID)
		row.P3ImpressionsSimilarValueString = point.ValueString
	default:
		logger.Warn("unknown daily metric, skipping",
			zap.String("metric", metricName),
			zap.String("listing_id", row.AirbnbListingID))
	}
}

type windowKey struct {
	listingID   string
	windowStart string
}

func pivotChartSummary(chunks []*FlatChunk) []*model.ChartSummaryRow {
	grouped := make(map[windowKey]*model.ChartSummaryRow)

	for _, chunk := range chunks {
		if chunk.Meta.Kind != QueryKindChart {
			continue
		}

		key := windowKey{
			listingID:   chunk.Meta.ListingID,
			windowStart: chunk.Meta.WindowStart.Format("2006-01-02"),
		}
		row, ok := grouped[key]
		if !ok {
			row = &model.ChartSummaryRow{
				AirbnbListingID:    chunk.Meta.ListingID,
				AirbnbInternalName: optionalName(chunk.Meta.ListingName),
				WindowStart:        chunk.Meta.WindowStart,
				WindowEnd:          chunk.Meta.WindowEnd,
			}
			grouped[key] = row
		}

		if chunk.PrimaryMetric != nil {
			setSummaryPrimary(row, chunk.PrimaryMetric)
		}
		for i := range chunk.SecondaryMetrics {
			setSummarySecondary(row, &chunk.SecondaryMetrics[i])
		}
	}

	return sortSummaryRows(grouped)
}

func setSummaryPrimary(row *model.ChartSummaryRow, m *SummaryMetric) {
	switch m.MetricName {
	case "conversion_rate":
		row.ConversionRateValue = m.Value
		row.ConversionRateValueString = m.ValueString
		row.ConversionRateValueChange = m.ValueChange
		row.ConversionRateValueChangeString = m.ValueChangeString
	case "p3_impressions":
		row.P3ImpressionsValue = coerceInt(m.Value, m.MetricName, row.AirbnbListingID)
		row.P3ImpressionsValueString = m.ValueString
		row.P3ImpressionsValueChange = m.ValueChange
		row.P3ImpressionsValueChangeString = m.ValueChangeString
	default:
		logger.Warn("unknown primary metric, skipping",
			zap.String("metric", m.MetricName),
			zap.String("listing_id", row.AirbnbListingID))
	}
}

func setSummarySecondary(row *model.ChartSummaryRow, m *SummaryMetric) {
	switch m.MetricName {
	case "p2_impressions_first_page_rate":
		row.P2ImpressionsFirstPageRateValue = m.Value
		row.P2ImpressionsFirstPageRateValueString = m.ValueString
	case "search_conversion_rate":
		row.SearchConversionRateValue = m.Value
		row.SearchConversionRateValueString = m.ValueString
	case "listing_conversion_rate":
		row.ListingConversionRateValue = m.Value
		row.ListingConversionRateValueString = m.ValueString
	case "p2_impressions":
		row.P2ImpressionsValue = coerceInt(m.Value, m.MetricName, row.AirbnbListingID)
		row.P2ImpressionsValueString = m.ValueString
	case "conversion_rate", "p3_impressions":
		// 主指标偶尔也会出现在次级列表, 忽略重复
	default:
		logger.Warn("unknown secondary metric, skipping",
			zap.String("metric", m.MetricName),
			zap.String("listing_id", row.AirbnbListingID))
	}
}

func pivotListOfMetrics(chunks []*FlatChunk) []*model.ListOfMetricsRow {
	grouped := make(map[windowKey]*model.ListOfMetricsRow)

	for _, chunk := range chunks {
		if chunk.Meta.Kind != QueryKindListOfMetrics {
			continue
		}

		key := windowKey{
			listingID:   chunk.Meta.ListingID,
			windowStart: chunk.Meta.WindowStart.Format("2006-01-02"),
		}
		row, ok := grouped[key]
		if !ok {
			row = &model.ListOfMetricsRow{
				AirbnbListingID:    chunk.Meta.ListingID,
				AirbnbInternalName: optionalName(chunk.Meta.ListingName),
				WindowStart:        chunk.Meta.WindowStart,
				WindowEnd:          chunk.Meta.WindowEnd,
			}
			grouped[key] = row
		}

		for i := range chunk.Metrics {
			setOverviewMetric(row, &chunk.Metrics[i])
		}
	}

	rows := make([]*model.ListOfMetricsRow, 0, len(grouped))
	for _, row := range grouped {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AirbnbListingID != rows[j].AirbnbListingID {
			return rows[i].AirbnbListingID < rows[j].AirbnbListingID
		}
		return rows[i].WindowStart.Before(rows[j].WindowStart)
	})
	return rows
}

func setOverviewMetric(row *model.ListOfMetricsRow, m *SummaryMetric) {
	switch m.MetricName {
	case "conversion_rate":
		row.ConversionRateValue = m.Value
		row.ConversionRateValueString = m.ValueString
	case "p2_impressions_first_page_rate":
		row.P2ImpressionsFirstPageRateValue = m.Value
		row.P2ImpressionsFirstPageRateValueString = m.ValueString
	case "search_conversion_rate":
		row.SearchConversionRateValue = m.Value
		row.SearchConversionRateValueString = m.ValueString
	case "listing_conversion_rate":
		row.ListingConversionRateValue = m.Value
		row.ListingConversionRateValueString = m.ValueString
	case "p3_impressions":
		row.P3ImpressionsValue = coerceInt(m.Value, m.MetricName, row.AirbnbListingID)
		row.P3ImpressionsValueString = m.ValueString
	case "p2_impressions":
		row.P2ImpressionsValue = coerceInt(m.Value, m.MetricName, row.AirbnbListingID)
		row.P2ImpressionsValueString = m.ValueString
	default:
		logger.Warn("unknown overview metric, skipping",
			zap.String("metric", m.MetricName),
			zap.String("listing_id", row.AirbnbListingID))
	}
}

func sortSummaryRows(grouped map[windowKey]*model.ChartSummaryRow) []*model.ChartSummaryRow {
	rows := make([]*model.ChartSummaryRow, 0, len(grouped))
	for _, row := range grouped {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AirbnbListingID != rows[j].AirbnbListingID {
			return rows[i].AirbnbListingID < rows[j].AirbnbListingID
		}
		return rows[i].WindowStart.Before(rows[j].WindowStart)
	})
	return rows
}

// coerceInt 计数指标取整, 非整数值置空并告警
func coerceInt(v *float64, metric, listingID string) *int64 {
	if v == nil {
		return nil
	}
	if *v != math.Trunc(*v) || math.IsNaN(*v) || math.IsInf(*v, 0) {
		logger.Warn("non-integral value for count metric, dropping",
			zap.String("metric", metric),
			zap.String("listing_id", listingID),
			zap.Float64("value", *v))
		return nil
	}
	n := int64(*v)
	return &n
}

func groupMetricName(meta ChunkMeta) string {
	if len(meta.GroupValues) > 0 {
		return meta.GroupValues[0]
	}
	return "unknown"
}

func optionalName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
