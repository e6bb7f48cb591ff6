package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hostpulse/airbnb-sync/internal/model"
)

// InsightsRepository 房源指标数据仓储
type InsightsRepository struct {
	db *gorm.DB
}

// NewInsightsRepository 创建房源指标数据仓储
func NewInsightsRepository(db *gorm.DB) *InsightsRepository {
	return &InsightsRepository{db: db}
}

// UpsertChartQuery 批量插入或更新日粒度图表指标 (幂等)
func (r *InsightsRepository) UpsertChartQuery(ctx context.Context, rows []*model.ChartQueryRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "airbnb_listing_id"},
			{Name: "metric_date"},
			{Name: "scrape_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"airbnb_internal_name",
			"conversion_rate_your_value", "conversion_rate_your_value_string",
			"conversion_rate_similar_value", "conversion_rate_similar_value_string",
			"p3_impressions_your_value", "p3_impressions_your_value_string",
			"p3_impressions_similar_value", "p3_impressions_similar_value_string",
		}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// UpsertChartSummary 批量插入或更新窗口汇总指标 (幂等)
func (r *InsightsRepository) UpsertChartSummary(ctx context.Context, rows []*model.ChartSummaryRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "airbnb_listing_id"},
			{Name: "window_start"},
			{Name: "scrape_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"airbnb_internal_name", "window_end",
			"conversion_rate_value", "conversion_rate_value_string",
			"conversion_rate_value_change", "conversion_rate_value_change_string",
			"p3_impressions_value", "p3_impressions_value_string",
			"p3_impressions_value_change", "p3_impressions_value_change_string",
			"p2_impressions_first_page_rate_value", "p2_impressions_first_page_rate_value_string",
			"search_conversion_rate_value", "search_conversion_rate_value_string",
			"listing_conversion_rate_value", "listing_conversion_rate_value_string",
			"p2_impressions_value", "p2_impressions_value_string",
		}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// UpsertListOfMetrics 批量插入或更新概览指标 (幂等)
func (r *InsightsRepository) UpsertListOfMetrics(ctx context.Context, rows []*model.ListOfMetricsRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "airbnb_listing_id"},
			{Name: "window_start"},
			{Name: "scrape_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"airbnb_internal_name", "window_end",
			"conversion_rate_value", "conversion_rate_value_string",
			"p2_impressions_first_page_rate_value", "p2_impressions_first_page_rate_value_string",
			"search_conversion_rate_value", "search_conversion_rate_value_string",
			"listing_conversion_rate_value", "listing_conversion_rate_value_string",
			"p3_impressions_value", "p3_impressions_value_string",
			"p2_impressions_value", "p2_impressions_value_string",
		}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// CountByAccount 统计账户已入库的指标行数
func (r *InsightsRepository) CountByAccount(ctx context.Context, accountID string) (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	for kind, m := range map[string]interface{}{
		string(model.RecordKindChartQuery):    &model.ChartQueryRow{},
		string(model.RecordKindChartSummary):  &model.ChartSummaryRow{},
		string(model.RecordKindListOfMetrics): &model.ListOfMetricsRow{},
	} {
		var count int64
		err := r.db.WithContext(ctx).
			Model(m).
			Where("account_id = ?", accountID).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, nil
}
