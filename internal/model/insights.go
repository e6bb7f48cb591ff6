// Package model 定义 airbnb-sync 的持久化模型
//
// 三类指标宽表共享同一自然键 {account_id, airbnb_listing_id, 周期键, scrape_date}:
// scrape_date 是抓取日, 不属于报告周期 —— 同一 (房源, 周期) 在不同抓取日各存一行,
// 形成 "as of" 历史快照; 同一抓取日内重复同步则原地覆盖。
package model

import "time"

// ChartQueryRow 日粒度时序指标 (ChartQuery 时序数据点按 房源×日期 透视)
type ChartQueryRow struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID          string    `gorm:"column:account_id;not null"`
	ScrapeDate         time.Time `gorm:"column:scrape_date;type:date;not null"`
	AirbnbListingID    string    `gorm:"column:airbnb_listing_id;type:text;not null"`
	AirbnbInternalName *string   `gorm:"column:airbnb_internal_name;type:text"`
	MetricDate         time.Time `gorm:"column:metric_date;type:date;not null"`

	ConversionRateYourValue          *float64 `gorm:"column:conversion_rate_your_value"`
	ConversionRateYourValueString    *string  `gorm:"column:conversion_rate_your_value_string;type:text"`
	ConversionRateSimilarValue       *float64 `gorm:"column:conversion_rate_similar_value"`
	ConversionRateSimilarValueString *string  `gorm:"column:conversion_rate_similar_value_string;type:text"`
	P3ImpressionsYourValue           *int64   `gorm:"column:p3_impressions_your_value"`
	P3ImpressionsYourValueString     *string  `gorm:"column:p3_impressions_your_value_string;type:text"`
	P3ImpressionsSimilarValue        *int64   `gorm:"column:p3_impressions_similar_value"`
	P3ImpressionsSimilarValueString  *string  `gorm:"column:p3_impressions_similar_value_string;type:text"`
}

// TableName 表名
func (ChartQueryRow) TableName() string {
	return "airbnb_chart_query"
}

// ChartSummaryRow 周窗口汇总指标 (ChartQuery 的 primary/secondary 指标按 房源×窗口 透视)
type ChartSummaryRow struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID          string    `gorm:"column:account_id;not null"`
	ScrapeDate         time.Time `gorm:"column:scrape_date;type:date;not null"`
	AirbnbListingID    string    `gorm:"column:airbnb_listing_id;type:text;not null"`
	AirbnbInternalName *string   `gorm:"column:airbnb_internal_name;type:text"`
	WindowStart        time.Time `gorm:"column:window_start;type:date;not null"`
	WindowEnd          time.Time `gorm:"column:window_end;type:date;not null"`

	ConversionRateValue             *float64 `gorm:"column:conversion_rate_value"`
	ConversionRateValueString       *string  `gorm:"column:conversion_rate_value_string;type:text"`
	ConversionRateValueChange       *float64 `gorm:"column:conversion_rate_value_change"`
	ConversionRateValueChangeString *string  `gorm:"column:conversion_rate_value_change_string;type:text"`
	P3ImpressionsValue              *int64   `gorm:"column:p3_impressions_value"`
	P3ImpressionsValueString        *string  `gorm:"column:p3_impressions_value_string;type:text"`
	P3ImpressionsValueChange        *float64 `gorm:"column:p3_impressions_value_change"`
	P3ImpressionsValueChangeString  *string  `gorm:"column:p3_impressions_value_change_string;type:text"`

	P2ImpressionsFirstPageRateValue       *float64 `gorm:"column:p2_impressions_first_page_rate_value"`
	P2ImpressionsFirstPageRateValueString *string  `gorm:"column:p2_impressions_first_page_rate_value_string;type:text"`
	SearchConversionRateValue             *float64 `gorm:"column:search_conversion_rate_value"`
	SearchConversionRateValueString       *string  `gorm:"column:search_conversion_rate_value_string;type:text"`
	ListingConversionRateValue            *float64 `gorm:"column:listing_conversion_rate_value"`
	ListingConversionRateValueString      *string  `gorm:"column:listing_conversion_rate_value_string;type:text"`
	P2ImpressionsValue                    *int64   `gorm:"column:p2_impressions_value"`
	P2ImpressionsValueString              *string  `gorm:"column:p2_impressions_value_string;type:text"`
}

// TableName 表名
func (ChartSummaryRow) TableName() string {
	return "airbnb_chart_summary"
}

// ListOfMetricsRow 周窗口曝光概览指标 (ListOfMetricsQuery 按 房源×窗口 透视)
type ListOfMetricsRow struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID          string    `gorm:"column:account_id;not null"`
	ScrapeDate         time.Time `gorm:"column:scrape_date;type:date;not null"`
	AirbnbListingID    string    `gorm:"column:airbnb_listing_id;type:text;not null"`
	AirbnbInternalName *string   `gorm:"column:airbnb_internal_name;type:text"`
	WindowStart        time.Time `gorm:"column:window_start;type:date;not null"`
	WindowEnd          time.Time `gorm:"column:window_end;type:date;not null"`

	ConversionRateValue                   *float64 `gorm:"column:conversion_rate_value"`
	ConversionRateValueString             *string  `gorm:"column:conversion_rate_value_string;type:text"`
	P2ImpressionsFirstPageRateValue       *float64 `gorm:"column:p2_impressions_first_page_rate_value"`
	P2ImpressionsFirstPageRateValueString *string  `gorm:"column:p2_impressions_first_page_rate_value_string;type:text"`
	SearchConversionRateValue             *float64 `gorm:"column:search_conversion_rate_value"`
	SearchConversionRateValueString       *string  `gorm:"column:search_conversion_rate_value_string;type:text"`
	ListingConversionRateValue            *float64 `gorm:"column:listing_conversion_rate_value"`
	ListingConversionRateValueString      *string  `gorm:"column:listing_conversion_rate_value_string;type:text"`
	P3ImpressionsValue                    *int64   `gorm:"column:p3_impressions_value"`
	P3ImpressionsValueString              *string  `gorm:"column:p3_impressions_value_string;type:text"`
	P2ImpressionsValue                    *int64   `gorm:"column:p2_impressions_value"`
	P2ImpressionsValueString              *string  `gorm:"column:p2_impressions_value_string;type:text"`
}

// TableName 表名
func (ListOfMetricsRow) TableName() string {
	return "airbnb_list_of_metrics"
}

// RecordKind 指标记录类别
type RecordKind string

const (
	RecordKindChartQuery    RecordKind = "chart_query"
	RecordKindChartSummary  RecordKind = "chart_summary"
	RecordKindListOfMetrics RecordKind = "list_of_metrics"
)
