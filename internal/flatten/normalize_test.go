package flatten

import (
	"testing"
	"time"
)

func tsRow(ds, label string, value float64, valueString string) TimeseriesRow {
	return TimeseriesRow{
		Granularity: "DAILY",
		Ds:          ds,
		Value:       &value,
		ValueString: &valueString,
		SourceLabel: label,
	}
}

func chartChunk(listingID, metric string, windowStart time.Time, rows ...TimeseriesRow) *FlatChunk {
	return &FlatChunk{
		Meta: ChunkMeta{
			Kind:        QueryKindChart,
			ListingID:   listingID,
			ListingName: "Test Listing",
			MetricType:  "CONVERSION",
			GroupValues: []string{metric},
			WindowStart: windowStart,
			WindowEnd:   windowStart.AddDate(0, 0, 27),
		},
		TimeseriesRows: rows,
	}
}

func TestNormalize_PivotsDailyMetricsIntoOneRow(t *testing.T) {
	start := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	chunks := []*FlatChunk{
		chartChunk("1001", "conversion_rate", start,
			tsRow("2025-11-02", "Your listing", 0.042, "4.2%"),
			tsRow("2025-11-02", "Similar listings", 0.031, "3.1%"),
		),
		chartChunk("1001", "p3_impressions", start,
			tsRow("2025-11-02", "Your listing", 120, "120"),
			tsRow("2025-11-02", "Similar listings", 95, "95"),
		),
	}

	rows := Normalize(chunks)
	if len(rows.ChartQuery) != 1 {
		t.Fatalf("Expected one pivoted row, got %d", len(rows.ChartQuery))
	}

	row := rows.ChartQuery[0]
	if row.AirbnbListingID != "1001" {
		t.Errorf("Unexpected listing id %s", row.AirbnbListingID)
	}
	if row.MetricDate.Format("2006-01-02") != "2025-11-02" {
		t.Errorf("Unexpected metric date %s", row.MetricDate)
	}
	if row.ConversionRateYourValue == nil || *row.ConversionRateYourValue != 0.042 {
		t.Errorf("Expected your conversion rate 0.042, got %v", row.ConversionRateYourValue)
	}
	if row.ConversionRateSimilarValue == nil || *row.ConversionRateSimilarValue != 0.031 {
		t.Errorf("Expected similar conversion rate 0.031, got %v", row.ConversionRateSimilarValue)
	}
	if row.P3ImpressionsYourValue == nil || *row.P3ImpressionsYourValue != 120 {
		t.Errorf("Expected your impressions 120, got %v", row.P3ImpressionsYourValue)
	}
	if row.P3ImpressionsSimilarValue == nil || *row.P3ImpressionsSimilarValue != 95 {
		t.Errorf("Expected similar impressions 95, got %v", row.P3ImpressionsSimilarValue)
	}
}

func TestNormalize_OrderIndependent(t *testing.T) {
	start := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	forward := []*FlatChunk{
		chartChunk("1001", "conversion_rate", start, tsRow("2025-11-02", "Your listing", 0.042, "4.2%")),
		chartChunk("1001", "p3_impressions", start, tsRow("2025-11-02", "Your listing", 120, "120")),
	}
	reversed := []*FlatChunk{forward[1], forward[0]}

	a := Normalize(forward)
	b := Normalize(reversed)

	if len(a.ChartQuery) != 1 || len(b.ChartQuery) != 1 {
		t.Fatalf("Expected one row each, got %d and %d", len(a.ChartQuery), len(b.ChartQuery))
	}
	ra, rb := a.ChartQuery[0], b.ChartQuery[0]
	if *ra.ConversionRateYourValue != *rb.ConversionRateYourValue ||
		*ra.P3ImpressionsYourValue != *rb.P3ImpressionsYourValue {
		t.Error("Pivot result must not depend on chunk order")
	}
}

func TestNormalize_DeterministicOrdering(t *testing.T) {
	start := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	chunks := []*FlatChunk{
		chartChunk("2002", "conversion_rate", start,
			tsRow("2025-11-03", "Your listing", 0.02, "2%"),
			tsRow("2025-11-02", "Your listing", 0.01, "1%"),
		),
		chartChunk("1001", "conversion_rate", start,
			tsRow("2025-11-02", "Your listing", 0.03, "3%"),
		),
	}

	rows := Normalize(chunks)
	if len(rows.ChartQuery) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows.ChartQuery))
	}
	// 先按房源, 再按日期
	if rows.ChartQuery[0].AirbnbListingID != "1001" {
		t.Errorf("Expected listing 1001 first, got %s", rows.ChartQuery[0].AirbnbListingID)
	}
	if rows.ChartQuery[1].MetricDate.After(rows.ChartQuery[2].MetricDate) {
		t.Error("Expected rows sorted by metric date within a listing")
	}
}

func TestNormalize_SummaryRow(t *testing.T) {
	start := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	value := 0.04
	valueStr := "4%"
	change := 0.005
	changeStr := "+0.5%"
	p2 := 1200.0
	p2Str := "1,200"

	chunk := chartChunk("1001", "conversion_rate", start)
	chunk.PrimaryMetric = &SummaryMetric{
		MetricName:        "conversion_rate",
		Value:             &value,
		ValueString:       &valueStr,
		ValueChange:       &change,
		ValueChangeString: &changeStr,
	}
	chunk.SecondaryMetrics = []SummaryMetric{
		{MetricName: "p2_impressions", Value: &p2, ValueString: &p2Str},
		{MetricName: "conversion_rate", Value: &value, ValueString: &valueStr}, // 重复主指标, 应忽略
	}

	rows := Normalize([]*FlatChunk{chunk})
	if len(rows.ChartSummary) != 1 {
		t.Fatalf("Expected one summary row, got %d", len(rows.ChartSummary))
	}

	row := rows.ChartSummary[0]
	if !row.WindowStart.Equal(start) || !row.WindowEnd.Equal(start.AddDate(0, 0, 27)) {
		t.Errorf("Unexpected window %s..%s", row.WindowStart, row.WindowEnd)
	}
	if row.ConversionRateValue == nil || *row.ConversionRateValue != 0.04 {
		t.Errorf("Expected conversion rate 0.04, got %v", row.ConversionRateValue)
	}
	if row.ConversionRateValueChange == nil || *row.ConversionRateValueChange != 0.005 {
		t.Errorf("Expected value change 0.005, got %v", row.ConversionRateValueChange)
	}
	if row.P2ImpressionsValue == nil || *row.P2ImpressionsValue != 1200 {
		t.Errorf("Expected p2 impressions 1200, got %v", row.P2ImpressionsValue)
	}
}

func TestNormalize_ListOfMetricsRow(t *testing.T) {
	start := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	conv := 0.05
	convStr := "5%"
	imp := 230.0
	impStr := "230"

	chunks := []*FlatChunk{
		{
			Meta: ChunkMeta{
				Kind:        QueryKindListOfMetrics,
				ListingID:   "1001",
				WindowStart: start,
				WindowEnd:   start.AddDate(0, 0, 6),
			},
			Metrics: []SummaryMetric{
				{MetricName: "conversion_rate", Value: &conv, ValueString: &convStr},
			},
		},
		{
			Meta: ChunkMeta{
				Kind:        QueryKindListOfMetrics,
				ListingID:   "1001",
				WindowStart: start,
				WindowEnd:   start.AddDate(0, 0, 6),
			},
			Metrics: []SummaryMetric{
				{MetricName: "p3_impressions", Value: &imp, ValueString: &impStr},
			},
		},
	}

	rows := Normalize(chunks)
	if len(rows.ListOfMetrics) != 1 {
		t.Fatalf("Expected one merged row, got %d", len(rows.ListOfMetrics))
	}

	row := rows.ListOfMetrics[0]
	if row.ConversionRateValue == nil || *row.ConversionRateValue != 0.05 {
		t.Errorf("Expected conversion rate 0.05, got %v", row.ConversionRateValue)
	}
	if row.P3ImpressionsValue == nil || *row.P3ImpressionsValue != 230 {
		t.Errorf("Expected p3 impressions 230, got %v", row.P3ImpressionsValue)
	}
	// 未返回的指标保持空
	if row.SearchConversionRateValue != nil {
		t.Error("Expected absent metric to stay nil")
	}
}

func TestNormalize_UnknownMetricSkipped(t *testing.T) {
	start := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	chunks := []*FlatChunk{
		chartChunk("1001", "brand_new_metric", start,
			tsRow("2025-11-02", "Your listing", 0.5, "50%"),
		),
	}

	rows := Normalize(chunks)
	if len(rows.ChartQuery) != 1 {
		t.Fatalf("Expected row to exist even with unknown metric, got %d", len(rows.ChartQuery))
	}
	row := rows.ChartQuery[0]
	if row.ConversionRateYourValue != nil || row.P3ImpressionsYourValue != nil {
		t.Error("Unknown metric must not populate known columns")
	}
}

func TestCoerceInt(t *testing.T) {
	integral := 120.0
	if got := coerceInt(&integral, "p3_impressions", "1001"); got == nil || *got != 120 {
		t.Errorf("Expected 120, got %v", got)
	}

	fractional := 120.5
	if got := coerceInt(&fractional, "p3_impressions", "1001"); got != nil {
		t.Errorf("Expected nil for fractional count, got %v", got)
	}

	if got := coerceInt(nil, "p3_impressions", "1001"); got != nil {
		t.Errorf("Expected nil for nil input, got %v", got)
	}
}
