// Package airbnb 封装 Airbnb 内部 GraphQL API 的访问
package airbnb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostpulse/airbnb-sync/internal/config"
	"github.com/hostpulse/airbnb-sync/internal/flatten"
	"github.com/hostpulse/airbnb-sync/internal/metrics"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
)

// Client Airbnb GraphQL API 客户端
type Client struct {
	baseURL    string
	maxRetries int
	retryBase  time.Duration
	httpClient *http.Client
}

// NewClient 创建 Airbnb API 客户端
func NewClient(cfg config.AirbnbConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		retryBase:  time.Duration(cfg.RetryBaseMs) * time.Millisecond,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		},
	}
}

// FetchListings 枚举账户名下所有房源, 按名称+ID稳定排序
func (c *Client) FetchListings(ctx context.Context, creds Credentials) ([]flatten.Listing, error) {
	raw, err := c.post(ctx, flatten.QueryKindListings, BuildListingsPayload(), creds)
	if err != nil {
		return nil, err
	}

	listings, err := flatten.ExtractListings(raw)
	if err != nil {
		if errors.Is(err, flatten.ErrAuthRequired) {
			return nil, &RequestError{Kind: ErrorKindAuth, Op: string(flatten.QueryKindListings), Err: err}
		}
		return nil, &RequestError{Kind: ErrorKindDecode, Op: string(flatten.QueryKindListings), Err: err}
	}

	sort.Slice(listings, func(i, j int) bool {
		if listings[i].InternalName != listings[j].InternalName {
			return listings[i].InternalName < listings[j].InternalName
		}
		return listings[i].ID < listings[j].ID
	})
	return listings, nil
}

// FetchMetricChunk 拉取单个子窗口的指标数据
func (c *Client) FetchMetricChunk(ctx context.Context, creds Credentials, req MetricRequest, scrapeDay time.Time) (*flatten.Chunk, error) {
	payload, err := BuildMetricPayload(req, scrapeDay)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, req.Kind, payload, creds)
	if err != nil {
		return nil, err
	}

	return &flatten.Chunk{
		Meta: flatten.ChunkMeta{
			Kind:        req.Kind,
			ListingID:   req.ListingID,
			ListingName: req.ListingName,
			MetricType:  req.MetricType,
			GroupValues: req.GroupValues,
			WindowStart: req.WindowStart,
			WindowEnd:   req.WindowEnd,
		},
		Raw: raw,
	}, nil
}

// post 带重试的 POST 请求
// 传输错误/5xx/429 指数退避重试, 401/403 凭证错误立即返回
func (c *Client) post(ctx context.Context, kind flatten.QueryKind, payload *Payload, creds Credentials) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Kind: ErrorKindDecode, Op: string(kind), Err: err}
	}

	url := c.baseURL + EndpointPath(kind)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordUpstreamRetry(string(kind))
			backoff := c.retryBase * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, &RequestError{Kind: ErrorKindTransport, Op: string(kind), Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		raw, err := c.doOnce(ctx, url, kind, body, creds)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		logger.Warn("airbnb request failed, retrying",
			zap.String("query", string(kind)),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, url string, kind flatten.QueryKind, body []byte, creds Credentials) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Kind: ErrorKindTransport, Op: string(kind), Err: err}
	}
	creds.RequestID = uuid.NewString()
	applyHeaders(req, creds)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(string(kind), "transport_error", time.Since(start))
		return nil, &RequestError{Kind: ErrorKindTransport, Op: string(kind), Err: err}
	}
	defer res.Body.Close()

	metrics.RecordUpstreamRequest(string(kind), fmt.Sprintf("%d", res.StatusCode), time.Since(start))

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, &RequestError{
			Kind: ErrorKindAuth, Op: string(kind), StatusCode: res.StatusCode,
			Err: fmt.Errorf("credentials rejected"),
		}
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, &RequestError{
			Kind: ErrorKindRateLimited, Op: string(kind), StatusCode: res.StatusCode,
			Err: fmt.Errorf("rate limited"),
		}
	case res.StatusCode >= 500:
		return nil, &RequestError{
			Kind: ErrorKindUpstream, Op: string(kind), StatusCode: res.StatusCode,
			Err: fmt.Errorf("upstream error"),
		}
	case res.StatusCode != http.StatusOK:
		return nil, &RequestError{
			Kind: ErrorKindUpstream, Op: string(kind), StatusCode: res.StatusCode,
			Err: fmt.Errorf("unexpected status"),
		}
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &RequestError{Kind: ErrorKindTransport, Op: string(kind), Err: err}
	}

	// 结构必须是带 data 键的 JSON 对象
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &RequestError{Kind: ErrorKindDecode, Op: string(kind), Err: err}
	}
	if _, ok := probe["data"]; !ok {
		return nil, &RequestError{
			Kind: ErrorKindDecode, Op: string(kind),
			Err: fmt.Errorf("response missing data field"),
		}
	}

	return raw, nil
}
