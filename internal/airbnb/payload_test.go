package airbnb

import (
	"strings"
	"testing"
	"time"

	"github.com/hostpulse/airbnb-sync/internal/flatten"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildMetricPayload_RelativeOffsets(t *testing.T) {
	scrapeDay := date("2025-11-10")
	req := MetricRequest{
		Kind:        flatten.QueryKindChart,
		ListingID:   "1001",
		WindowStart: date("2025-11-02"),
		WindowEnd:   date("2025-11-29"),
		MetricType:  "CONVERSION",
		GroupValues: []string{"conversion_rate"},
	}

	payload, err := BuildMetricPayload(req, scrapeDay)
	if err != nil {
		t.Fatalf("BuildMetricPayload failed: %v", err)
	}

	args := payload.Variables.Request.Arguments
	// 2025-11-02 在 scrapeDay 前 8 天: −8 + 3 = −5
	if args.RelativeDsStart == nil || *args.RelativeDsStart != -5 {
		t.Errorf("Expected relativeDsStart -5, got %v", args.RelativeDsStart)
	}
	// 2025-11-29 在 scrapeDay 后 19 天: 19 + 3 = 22
	if args.RelativeDsEnd == nil || *args.RelativeDsEnd != 22 {
		t.Errorf("Expected relativeDsEnd 22, got %v", args.RelativeDsEnd)
	}
}

func TestBuildMetricPayload_ChartQuery(t *testing.T) {
	req := MetricRequest{
		Kind:        flatten.QueryKindChart,
		ListingID:   "1001",
		WindowStart: date("2025-11-02"),
		WindowEnd:   date("2025-11-29"),
		MetricType:  "CONVERSION",
		GroupValues: []string{"p3_impressions"},
	}

	payload, err := BuildMetricPayload(req, date("2025-11-10"))
	if err != nil {
		t.Fatalf("BuildMetricPayload failed: %v", err)
	}

	if payload.OperationName != "ChartQuery" {
		t.Errorf("Unexpected operation name %s", payload.OperationName)
	}
	if payload.Variables.Request.ClientName != "web-performance-dash-chart" {
		t.Errorf("Unexpected client name %s", payload.Variables.Request.ClientName)
	}

	args := payload.Variables.Request.Arguments
	if args.MetricComparisonType != "MARKET" {
		t.Errorf("Expected MARKET comparison for chart query, got %q", args.MetricComparisonType)
	}
	if args.Filters == nil || len(args.Filters.ListingIDs) != 1 || args.Filters.ListingIDs[0] != "1001" {
		t.Errorf("Unexpected listing filter: %+v", args.Filters)
	}
	if len(args.GroupByValues) != 1 || args.GroupByValues[0] != "p3_impressions" {
		t.Errorf("Unexpected group values: %v", args.GroupByValues)
	}
}

func TestBuildMetricPayload_ListOfMetricsOmitsComparison(t *testing.T) {
	req := MetricRequest{
		Kind:        flatten.QueryKindListOfMetrics,
		ListingID:   "1001",
		WindowStart: date("2025-11-02"),
		WindowEnd:   date("2025-11-08"),
		MetricType:  "CONVERSION",
		GroupValues: []string{"conversion_rate"},
	}

	payload, err := BuildMetricPayload(req, date("2025-11-10"))
	if err != nil {
		t.Fatalf("BuildMetricPayload failed: %v", err)
	}

	if got := payload.Variables.Request.Arguments.MetricComparisonType; got != "" {
		t.Errorf("Expected no comparison type for list of metrics, got %q", got)
	}
	if payload.Variables.Request.ClientName != "web-performance-dash-metrics" {
		t.Errorf("Unexpected client name %s", payload.Variables.Request.ClientName)
	}
}

func TestBuildMetricPayload_Validation(t *testing.T) {
	if _, err := BuildMetricPayload(MetricRequest{Kind: flatten.QueryKindListings, ListingID: "1"}, date("2025-11-10")); err == nil {
		t.Error("Expected error for listings kind")
	}
	if _, err := BuildMetricPayload(MetricRequest{Kind: flatten.QueryKindChart}, date("2025-11-10")); err == nil {
		t.Error("Expected error for missing listing id")
	}
}

func TestBuildListingsPayload(t *testing.T) {
	payload := BuildListingsPayload()

	if payload.OperationName != "ListingsSectionQuery" {
		t.Errorf("Unexpected operation name %s", payload.OperationName)
	}
	args := payload.Variables.Request.Arguments
	if args.RelativeDsStart != nil || args.RelativeDsEnd != nil {
		t.Error("Listings payload must not carry relative date offsets")
	}
	if len(args.GroupByValues) != 1 || args.GroupByValues[0] != "occupancy_rate" {
		t.Errorf("Unexpected group values: %v", args.GroupByValues)
	}
}

func TestEndpointPath(t *testing.T) {
	path := EndpointPath(flatten.QueryKindChart)
	if !strings.HasPrefix(path, "/api/v3/ChartQuery/") {
		t.Errorf("Unexpected path %s", path)
	}
	if !strings.HasSuffix(path, persistedQueryHashes[flatten.QueryKindChart]) {
		t.Errorf("Path must end with persisted query hash, got %s", path)
	}
}
