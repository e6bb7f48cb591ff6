package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hostpulse/airbnb-sync/internal/airbnb"
	"github.com/hostpulse/airbnb-sync/internal/flatten"
	"github.com/hostpulse/airbnb-sync/internal/metrics"
	"github.com/hostpulse/airbnb-sync/internal/model"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
)

// ListingResult 单个房源的同步结果
type ListingResult struct {
	Listing     flatten.Listing
	OK          bool
	Reason      string
	AuthFailure bool
	RowsWritten map[model.RecordKind]int
}

// syncListing 同步单个房源: 先拉取全部查询类型的全部子窗口,
// 任一拉取失败即放弃该房源且不写入任何数据; 全部成功后才归一化入库
func (o *Orchestrator) syncListing(ctx context.Context, account *model.Account, listing flatten.Listing, window Window, scrapeDay time.Time) ListingResult {
	result := ListingResult{Listing: listing, RowsWritten: make(map[model.RecordKind]int)}
	creds := accountCredentials(account)

	var chunks []*flatten.FlatChunk
	for _, kind := range metricQueryKinds {
		spec := flatten.Specs[kind]
		for _, sub := range ChunkWindows(window, spec.WindowDays) {
			for _, q := range metricQueries {
				chunk, err := o.provider.FetchMetricChunk(ctx, creds, airbnb.MetricRequest{
					Kind:        kind,
					ListingID:   listing.ID,
					ListingName: listing.InternalName,
					WindowStart: sub.Start,
					WindowEnd:   sub.End,
					MetricType:  q.MetricType,
					GroupValues: q.GroupValues,
				}, scrapeDay)
				if err != nil {
					return failedResult(result, kind, sub, err)
				}

				flat, err := flatten.Flatten(*chunk)
				if err != nil {
					return failedResult(result, kind, sub, err)
				}
				chunks = append(chunks, flat)
			}
		}
	}

	rows := flatten.Normalize(chunks)
	stampRows(rows, account.AccountID, scrapeDay)

	if o.cfg.DryRun {
		logger.Info("dry run, skipping writes",
			zap.String("account_id", account.AccountID),
			zap.String("listing_id", listing.ID),
			zap.Int("chart_query_rows", len(rows.ChartQuery)),
			zap.Int("chart_summary_rows", len(rows.ChartSummary)),
			zap.Int("list_of_metrics_rows", len(rows.ListOfMetrics)))
		result.OK = true
		return result
	}

	n, err := o.insights.UpsertChartQuery(ctx, rows.ChartQuery)
	if err != nil {
		result.Reason = fmt.Sprintf("write chart_query: %v", err)
		return result
	}
	result.RowsWritten[model.RecordKindChartQuery] = n
	metrics.RecordRowsUpserted(string(model.RecordKindChartQuery), n)

	n, err = o.insights.UpsertChartSummary(ctx, rows.ChartSummary)
	if err != nil {
		result.Reason = fmt.Sprintf("write chart_summary: %v", err)
		return result
	}
	result.RowsWritten[model.RecordKindChartSummary] = n
	metrics.RecordRowsUpserted(string(model.RecordKindChartSummary), n)

	n, err = o.insights.UpsertListOfMetrics(ctx, rows.ListOfMetrics)
	if err != nil {
		result.Reason = fmt.Sprintf("write list_of_metrics: %v", err)
		return result
	}
	result.RowsWritten[model.RecordKindListOfMetrics] = n
	metrics.RecordRowsUpserted(string(model.RecordKindListOfMetrics), n)

	result.OK = true
	return result
}

func failedResult(result ListingResult, kind flatten.QueryKind, sub Window, err error) ListingResult {
	result.Reason = fmt.Sprintf("%s %s: %v", kind, sub, err)
	result.AuthFailure = airbnb.IsAuthError(err) || errors.Is(err, flatten.ErrAuthRequired)
	return result
}

// stampRows 填充归一化行的账户ID与抓取日
func stampRows(rows *flatten.Rows, accountID string, scrapeDay time.Time) {
	for _, row := range rows.ChartQuery {
		row.AccountID = accountID
		row.ScrapeDate = scrapeDay
	}
	for _, row := range rows.ChartSummary {
		row.AccountID = accountID
		row.ScrapeDate = scrapeDay
	}
	for _, row := range rows.ListOfMetrics {
		row.AccountID = accountID
		row.ScrapeDate = scrapeDay
	}
}

func accountCredentials(account *model.Account) airbnb.Credentials {
	return airbnb.Credentials{
		Cookie:         account.AirbnbCookie,
		XClientVersion: account.XClientVersion,
		UserAgent:      account.UserAgent,
	}
}

// totalRows 该房源写入的总行数
func (r ListingResult) totalRows() int {
	total := 0
	for _, n := range r.RowsWritten {
		total += n
	}
	return total
}
