package flatten

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrAuthRequired 响应表明会话凭证已失效
var ErrAuthRequired = errors.New("airbnb session requires authentication")

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		ErrorType string `json:"errorType"`
	} `json:"extensions"`
}

type valueWrapper struct {
	DoubleValue *float64 `json:"doubleValue"`
	LongValue   *int64   `json:"longValue"`
}

// Float64 取数值, doubleValue 优先于 longValue
func (v *valueWrapper) Float64() *float64 {
	if v == nil {
		return nil
	}
	if v.DoubleValue != nil {
		return v.DoubleValue
	}
	if v.LongValue != nil {
		f := float64(*v.LongValue)
		return &f
	}
	return nil
}

type dataPoint struct {
	Ds          string        `json:"ds"`
	Label       *string       `json:"label"`
	Value       *valueWrapper `json:"value"`
	ValueString *string       `json:"valueString"`
	ValueType   *string       `json:"valueType"`
}

type metricLineChart struct {
	Granularity string      `json:"granularity"`
	Label       string      `json:"label"`
	DataPoints  []dataPoint `json:"dataPoints"`
}

type summaryMetric struct {
	MetricName        string        `json:"metricName"`
	Label             *string       `json:"label"`
	Value             *valueWrapper `json:"value"`
	ValueString       *string       `json:"valueString"`
	ValueType         *string       `json:"valueType"`
	ValueChange       *valueWrapper `json:"valueChange"`
	ValueChangeString *string       `json:"valueChangeString"`
}

type tableRow struct {
	ID           string `json:"id"`
	InternalName string `json:"internalName"`
}

type component struct {
	MetricLineCharts []metricLineChart `json:"metricLineCharts"`
	PrimaryMetric    *summaryMetric    `json:"primaryMetric"`
	SecondaryMetrics []summaryMetric   `json:"secondaryMetrics"`
	Metrics          []summaryMetric   `json:"metrics"`
	TableRows        []tableRow        `json:"tableRows"`
}

type perfResponse struct {
	Data *struct {
		Porygon *struct {
			GetPerformanceComponents *struct {
				Components []component `json:"components"`
			} `json:"getPerformanceComponents"`
		} `json:"porygon"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Component 提取响应中的首个性能组件
// data→porygon→getPerformanceComponents→components[0];
// getPerformanceComponents 为 null 或错误类型为 authentication_required
// 时返回 ErrAuthRequired
func Component(raw json.RawMessage) (*component, error) {
	var resp perfResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	for _, gqlErr := range resp.Errors {
		if gqlErr.Extensions.ErrorType == "authentication_required" {
			return nil, ErrAuthRequired
		}
	}

	if resp.Data == nil || resp.Data.Porygon == nil {
		return nil, fmt.Errorf("response missing porygon data")
	}
	if resp.Data.Porygon.GetPerformanceComponents == nil {
		// 凭证过期时 Airbnb 返回显式 null
		return nil, ErrAuthRequired
	}
	components := resp.Data.Porygon.GetPerformanceComponents.Components
	if len(components) == 0 {
		return nil, fmt.Errorf("response has no components")
	}
	return &components[0], nil
}
