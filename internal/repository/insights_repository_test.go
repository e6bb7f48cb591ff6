package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hostpulse/airbnb-sync/internal/model"
)

func setupInsightsTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// 创建表结构
	err = db.AutoMigrate(
		&model.ChartQueryRow{},
		&model.ChartSummaryRow{},
		&model.ListOfMetricsRow{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	// 为 SQLite 创建唯一索引 (支持 ON CONFLICT)
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chart_query_unique
		 ON airbnb_chart_query(account_id, airbnb_listing_id, metric_date, scrape_date)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chart_summary_unique
		 ON airbnb_chart_summary(account_id, airbnb_listing_id, window_start, scrape_date)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_list_of_metrics_unique
		 ON airbnb_list_of_metrics(account_id, airbnb_listing_id, window_start, scrape_date)`,
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			t.Fatalf("Could not create unique index: %v", err)
		}
	}

	return db
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int64) *int64       { return &i }
func strPtr(s string) *string     { return &s }

func TestInsightsRepository_UpsertChartQuery_Empty(t *testing.T) {
	db := setupInsightsTestDB(t)
	repo := NewInsightsRepository(db)
	ctx := context.Background()

	// 空列表不写库也不报错
	n, err := repo.UpsertChartQuery(ctx, nil)
	if err != nil {
		t.Fatalf("UpsertChartQuery with empty list should not fail: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 rows written, got %d", n)
	}
}

func TestInsightsRepository_UpsertChartQuery(t *testing.T) {
	db := setupInsightsTestDB(t)
	repo := NewInsightsRepository(db)
	ctx := context.Background()

	scrapeDate := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	metricDate := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	rows := []*model.ChartQueryRow{
		{
			AccountID:                     "12345",
			ScrapeDate:                    scrapeDate,
			AirbnbListingID:               "L1",
			AirbnbInternalName:            strPtr("Sea View Loft"),
			MetricDate:                    metricDate,
			ConversionRateYourValue:       floatPtr(0.021),
			ConversionRateYourValueString: strPtr("2.1%"),
			P3ImpressionsYourValue:        intPtr(340),
		},
		{
			AccountID:       "12345",
			ScrapeDate:      scrapeDate,
			AirbnbListingID: "L1",
			MetricDate:      metricDate.AddDate(0, 0, 1),
		},
	}

	n, err := repo.UpsertChartQuery(ctx, rows)
	if err != nil {
		t.Fatalf("UpsertChartQuery failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rows written, got %d", n)
	}

	var count int64
	db.Model(&model.ChartQueryRow{}).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 records, got %d", count)
	}
}

func TestInsightsRepository_UpsertChartQuery_Conflict(t *testing.T) {
	db := setupInsightsTestDB(t)
	repo := NewInsightsRepository(db)
	ctx := context.Background()

	scrapeDate := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	metricDate := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	first := []*model.ChartQueryRow{{
		AccountID:               "12345",
		ScrapeDate:              scrapeDate,
		AirbnbListingID:         "L1",
		MetricDate:              metricDate,
		ConversionRateYourValue: floatPtr(0.020),
	}}
	if _, err := repo.UpsertChartQuery(ctx, first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// 同一自然键重放应原地更新而非新增
	second := []*model.ChartQueryRow{{
		AccountID:               "12345",
		ScrapeDate:              scrapeDate,
		AirbnbListingID:         "L1",
		MetricDate:              metricDate,
		ConversionRateYourValue: floatPtr(0.025),
		P3ImpressionsYourValue:  intPtr(400),
	}}
	n, err := repo.UpsertChartQuery(ctx, second)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 row written, got %d", n)
	}

	var count int64
	db.Model(&model.ChartQueryRow{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 record after conflict update, got %d", count)
	}

	var got model.ChartQueryRow
	if err := db.First(&got).Error; err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if got.ConversionRateYourValue == nil || *got.ConversionRateYourValue != 0.025 {
		t.Errorf("Expected conversion rate updated to 0.025, got %v", got.ConversionRateYourValue)
	}
	if got.P3ImpressionsYourValue == nil || *got.P3ImpressionsYourValue != 400 {
		t.Errorf("Expected p3 impressions updated to 400, got %v", got.P3ImpressionsYourValue)
	}
}

func TestInsightsRepository_UpsertChartSummary_Conflict(t *testing.T) {
	db := setupInsightsTestDB(t)
	repo := NewInsightsRepository(db)
	ctx := context.Background()

	scrapeDate := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	windowStart := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 27)

	row := &model.ChartSummaryRow{
		AccountID:           "12345",
		ScrapeDate:          scrapeDate,
		AirbnbListingID:     "L1",
		WindowStart:         windowStart,
		WindowEnd:           windowEnd,
		ConversionRateValue: floatPtr(0.019),
	}
	if _, err := repo.UpsertChartSummary(ctx, []*model.ChartSummaryRow{row}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	replay := &model.ChartSummaryRow{
		AccountID:                 "12345",
		ScrapeDate:                scrapeDate,
		AirbnbListingID:           "L1",
		WindowStart:               windowStart,
		WindowEnd:                 windowEnd,
		ConversionRateValue:       floatPtr(0.022),
		ConversionRateValueChange: floatPtr(0.003),
	}
	if _, err := repo.UpsertChartSummary(ctx, []*model.ChartSummaryRow{replay}); err != nil {
		t.Fatalf("replay upsert failed: %v", err)
	}

	var count int64
	db.Model(&model.ChartSummaryRow{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 record after replay, got %d", count)
	}

	var got model.ChartSummaryRow
	if err := db.First(&got).Error; err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if got.ConversionRateValue == nil || *got.ConversionRateValue != 0.022 {
		t.Errorf("Expected conversion rate 0.022, got %v", got.ConversionRateValue)
	}
}

func TestInsightsRepository_UpsertListOfMetrics(t *testing.T) {
	db := setupInsightsTestDB(t)
	repo := NewInsightsRepository(db)
	ctx := context.Background()

	scrapeDate := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	windowStart := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	rows := []*model.ListOfMetricsRow{
		{
			AccountID:           "12345",
			ScrapeDate:          scrapeDate,
			AirbnbListingID:     "L1",
			WindowStart:         windowStart,
			WindowEnd:           windowStart.AddDate(0, 0, 6),
			ConversionRateValue: floatPtr(0.018),
			P2ImpressionsValue:  intPtr(1200),
		},
		{
			AccountID:       "12345",
			ScrapeDate:      scrapeDate,
			AirbnbListingID: "L2",
			WindowStart:     windowStart,
			WindowEnd:       windowStart.AddDate(0, 0, 6),
		},
	}

	n, err := repo.UpsertListOfMetrics(ctx, rows)
	if err != nil {
		t.Fatalf("UpsertListOfMetrics failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 rows written, got %d", n)
	}

	// 不同 scrape_date 的同窗口行保留为历史快照
	later := []*model.ListOfMetricsRow{{
		AccountID:       "12345",
		ScrapeDate:      scrapeDate.AddDate(0, 0, 7),
		AirbnbListingID: "L1",
		WindowStart:     windowStart,
		WindowEnd:       windowStart.AddDate(0, 0, 6),
	}}
	if _, err := repo.UpsertListOfMetrics(ctx, later); err != nil {
		t.Fatalf("later upsert failed: %v", err)
	}

	var count int64
	db.Model(&model.ListOfMetricsRow{}).Count(&count)
	if count != 3 {
		t.Errorf("Expected 3 records across scrape dates, got %d", count)
	}
}

func TestInsightsRepository_CountByAccount(t *testing.T) {
	db := setupInsightsTestDB(t)
	repo := NewInsightsRepository(db)
	ctx := context.Background()

	scrapeDate := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	_, err := repo.UpsertChartQuery(ctx, []*model.ChartQueryRow{{
		AccountID:       "12345",
		ScrapeDate:      scrapeDate,
		AirbnbListingID: "L1",
		MetricDate:      scrapeDate.AddDate(0, 0, -7),
	}})
	if err != nil {
		t.Fatalf("UpsertChartQuery failed: %v", err)
	}

	counts, err := repo.CountByAccount(ctx, "12345")
	if err != nil {
		t.Fatalf("CountByAccount failed: %v", err)
	}
	if counts[string(model.RecordKindChartQuery)] != 1 {
		t.Errorf("Expected 1 chart_query row, got %d", counts[string(model.RecordKindChartQuery)])
	}
	if counts[string(model.RecordKindChartSummary)] != 0 {
		t.Errorf("Expected 0 chart_summary rows, got %d", counts[string(model.RecordKindChartSummary)])
	}
}
