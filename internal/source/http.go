package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-vitals/internal/metrics"
	"wisefido-vitals/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// hospitalizationsPath 住院服务列表接口
const hospitalizationsPath = "/api/hospitalizations"

// ErrUnexpectedStatus 住院服务返回非 2xx 状态
var ErrUnexpectedStatus = errors.New("unexpected status from hospitalization service")

// HTTPConfig 住院服务客户端配置
type HTTPConfig struct {
	BaseURL       string
	Token         string        // Bearer token，可为空
	Timeout       time.Duration // 默认 10秒
	RetryCount    int           // 默认 2，负数关闭重试
	RetryWaitTime time.Duration // 默认 500ms
}

// HTTPSource 通过 REST 接口获取住院记录
type HTTPSource struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPSource 创建住院服务客户端
func NewHTTPSource(cfg HTTPConfig, logger *zap.Logger) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	} else if cfg.RetryCount == 0 {
		cfg.RetryCount = 2
	}
	if cfg.RetryWaitTime <= 0 {
		cfg.RetryWaitTime = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(4 * cfg.RetryWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 5xx 视为瞬时故障
			return r != nil && r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &HTTPSource{
		httpClient: client,
		logger:     logger,
	}
}

// FetchAll 获取全部住院记录（含生命体征）
func (s *HTTPSource) FetchAll(ctx context.Context) ([]models.Hospitalization, error) {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		Get(hospitalizationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to call hospitalization service: %w", err)
	}

	if resp.IsError() {
		s.logger.Warn("Hospitalization service returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("path", hospitalizationsPath),
		)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
	}

	var hospitalizations []models.Hospitalization
	if err := json.Unmarshal(resp.Body(), &hospitalizations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hospitalizations: %w", err)
	}

	if malformed := countMalformedTimes(hospitalizations); malformed > 0 {
		metrics.MalformedTimestampsTotal.Add(float64(malformed))
		s.logger.Warn("Malformed timestamps in hospitalization payload",
			zap.Int("malformed_count", malformed),
			zap.Int("hospitalization_count", len(hospitalizations)),
		)
	}

	s.logger.Debug("Fetched hospitalizations",
		zap.Int("hospitalization_count", len(hospitalizations)),
		zap.Duration("latency", resp.Time()),
	)

	return hospitalizations, nil
}

// countMalformedTimes 无法解析的时间按零值处理，这里只做统计
func countMalformedTimes(hospitalizations []models.Hospitalization) int {
	total := 0
	for _, h := range hospitalizations {
		total += h.MalformedTimes()
	}
	return total
}
