package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/conf"
	"entitlement-service/internal/constants"
	"entitlement-service/internal/metrics"

	_ "github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"golang.org/x/time/rate"
)

// App Store verifyReceipt 状态码
const (
	appStoreStatusOK             = 0
	appStoreStatusSandboxReceipt = 21007 // 沙盒收据发到了生产端点
	appStoreStatusProdReceipt    = 21008 // 生产收据发到了沙盒端点
)

const (
	defaultAppStoreProductionEndpoint = "https://buy.itunes.apple.com/verifyReceipt"
	defaultAppStoreSandboxEndpoint    = "https://sandbox.itunes.apple.com/verifyReceipt"
	defaultAppStoreTimeout            = 10 * time.Second
	defaultVerifyMaxAttempts          = 2
)

type appStoreRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password,omitempty"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type appStoreTransaction struct {
	Quantity              string `json:"quantity"`
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMs        string `json:"purchase_date_ms"`
	ExpiresDateMs         string `json:"expires_date_ms"`
	IsTrialPeriod         string `json:"is_trial_period"`
}

type appStoreResponse struct {
	Status      int    `json:"status"`
	Environment string `json:"environment"`
	Receipt     struct {
		InApp []appStoreTransaction `json:"in_app"`
	} `json:"receipt"`
	LatestReceiptInfo []appStoreTransaction `json:"latest_receipt_info"`

	raw json.RawMessage // 原始响应体，作为收据审计记录
}

// verifyOutcome 单次请求结果分类
type verifyOutcome int

const (
	outcomeOK verifyOutcome = iota
	outcomeRetryable
	outcomeTerminal
)

func (o verifyOutcome) label() string {
	switch o {
	case outcomeOK:
		return constants.VerifyOutcomeOK
	case outcomeRetryable:
		return constants.VerifyOutcomeRetryable
	default:
		return constants.VerifyOutcomeTerminal
	}
}

// classifyStatus 环境不匹配可在另一端点重试，其余非 0 状态直接失败
func classifyStatus(status int) verifyOutcome {
	switch status {
	case appStoreStatusOK:
		return outcomeOK
	case appStoreStatusSandboxReceipt, appStoreStatusProdReceipt:
		return outcomeRetryable
	default:
		return outcomeTerminal
	}
}

// appStoreBackend 单个 verifyReceipt 端点
type appStoreBackend struct {
	env     string
	path    string
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// appStoreVerifier 按声明环境优先的顺序依次请求生产/沙盒端点
type appStoreVerifier struct {
	backends     map[string]*appStoreBackend
	sharedSecret string
	maxAttempts  int
	log          *log.Helper
	metrics      *metrics.EntitlementMetrics
}

func newAppStoreVerifier(c *conf.Verifier, logger log.Logger) (*appStoreVerifier, error) {
	var asc conf.Verifier_AppStore
	if c.AppStore != nil {
		asc = *c.AppStore
	}
	timeout := asc.Timeout.AsDuration()
	if timeout <= 0 {
		timeout = defaultAppStoreTimeout
	}
	maxAttempts := int(c.MaxAttempts)
	if maxAttempts <= 0 || maxAttempts > 2 {
		maxAttempts = defaultVerifyMaxAttempts
	}

	v := &appStoreVerifier{
		backends:     make(map[string]*appStoreBackend, 2),
		sharedSecret: asc.SharedSecret,
		maxAttempts:  maxAttempts,
		log:          log.NewHelper(logger),
		metrics:      metrics.GetMetrics(),
	}
	endpoints := map[string]string{
		constants.ReceiptEnvProduction: orDefault(asc.ProductionEndpoint, defaultAppStoreProductionEndpoint),
		constants.ReceiptEnvSandbox:    orDefault(asc.SandboxEndpoint, defaultAppStoreSandboxEndpoint),
	}
	for env, endpoint := range endpoints {
		backend, err := newAppStoreBackend(env, endpoint, timeout, c.RateLimit)
		if err != nil {
			v.close()
			return nil, err
		}
		v.backends[env] = backend
	}
	return v, nil
}

func newAppStoreBackend(env, endpoint string, timeout time.Duration, rl *conf.Verifier_RateLimit) (*appStoreBackend, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid %s endpoint %q: %w", env, endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s endpoint %q", env, endpoint)
	}

	client, err := http.NewClient(
		context.Background(),
		http.WithEndpoint(u.Scheme+"://"+u.Host),
		http.WithTimeout(timeout),
		http.WithMiddleware(
			recovery.Recovery(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", env, err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if rl != nil && rl.Rps > 0 {
		burst := int(rl.Burst)
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rl.Rps), burst)
	}

	path := u.Path
	if path == "" {
		path = "/verifyReceipt"
	}
	return &appStoreBackend{
		env:     env,
		path:    path,
		client:  client,
		limiter: limiter,
		timeout: timeout,
	}, nil
}

func (v *appStoreVerifier) close() {
	for _, b := range v.backends {
		if b.client != nil {
			_ = b.client.Close()
		}
	}
}

// order 声明为 sandbox 时先请求沙盒，否则先请求生产
func (v *appStoreVerifier) order(claimed string) []*appStoreBackend {
	first, second := constants.ReceiptEnvProduction, constants.ReceiptEnvSandbox
	if normalizeEnvironment(claimed, constants.ReceiptEnvProduction) == constants.ReceiptEnvSandbox {
		first, second = second, first
	}
	return []*appStoreBackend{v.backends[first], v.backends[second]}
}

// Verify 校验 App Store 收据
func (v *appStoreVerifier) Verify(ctx context.Context, in *biz.VerifyInput) (*biz.VerificationResult, error) {
	req := &appStoreRequest{
		ReceiptData:            in.ReceiptData,
		Password:               v.sharedSecret,
		ExcludeOldTransactions: true,
	}

	var lastErr error
	backends := v.order(in.Environment)
	for attempt := 0; attempt < v.maxAttempts && attempt < len(backends); attempt++ {
		backend := backends[attempt]
		resp, outcome, err := v.call(ctx, backend, req)
		switch outcome {
		case outcomeOK:
			return v.toResult(resp, backend.env, in)
		case outcomeTerminal:
			return nil, biz.NewError(biz.KindVerificationFailed, "app store rejected receipt with status %d", resp.Status)
		}
		lastErr = err
		v.log.WithContext(ctx).Warnf("App Store verify retryable failure: env=%s, attempt=%d, error=%v", backend.env, attempt+1, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, biz.WrapError(biz.KindVerificationFailed, lastErr, "app store verification unavailable")
}

func (v *appStoreVerifier) call(ctx context.Context, b *appStoreBackend, req *appStoreRequest) (*appStoreResponse, verifyOutcome, error) {
	startTime := time.Now()
	outcome := outcomeRetryable
	defer func() {
		if v.metrics != nil {
			v.metrics.VerifyAttempts.WithLabelValues(b.env, outcome.label()).Inc()
			v.metrics.VerifyDuration.WithLabelValues(b.env).Observe(time.Since(startTime).Seconds())
		}
	}()

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, outcome, fmt.Errorf("rate limit: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	var raw json.RawMessage
	if err := b.client.Invoke(callCtx, "POST", b.path, req, &raw); err != nil {
		return nil, outcome, err
	}
	var resp appStoreResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, outcome, fmt.Errorf("decode app store response: %w", err)
	}
	resp.raw = raw
	outcome = classifyStatus(resp.Status)
	if outcome == outcomeRetryable {
		return &resp, outcome, fmt.Errorf("app store status %d", resp.Status)
	}
	return &resp, outcome, nil
}

// toResult 优先取交易号匹配的条目，没有则取第一条
func (v *appStoreVerifier) toResult(resp *appStoreResponse, env string, in *biz.VerifyInput) (*biz.VerificationResult, error) {
	entries := make([]appStoreTransaction, 0, len(resp.LatestReceiptInfo)+len(resp.Receipt.InApp))
	entries = append(entries, resp.LatestReceiptInfo...)
	entries = append(entries, resp.Receipt.InApp...)
	if len(entries) == 0 {
		return nil, biz.NewError(biz.KindInvalidReceipt, "receipt contains no transactions")
	}
	entry := entries[0]
	for _, e := range entries {
		if e.TransactionID == in.TransactionID {
			entry = e
			break
		}
	}

	purchaseDate, err := parseMillis(entry.PurchaseDateMs)
	if err != nil {
		return nil, biz.WrapError(biz.KindInvalidReceipt, err, "invalid purchase_date_ms")
	}
	result := &biz.VerificationResult{
		TransactionID:         entry.TransactionID,
		ProductID:             entry.ProductID,
		OriginalTransactionID: entry.OriginalTransactionID,
		PurchaseDate:          purchaseDate,
		IsTrial:               entry.IsTrialPeriod == "true",
		Environment:           normalizeEnvironment(resp.Environment, env),
		Raw:                   string(resp.raw),
	}
	if entry.Quantity != "" {
		if q, err := strconv.Atoi(entry.Quantity); err == nil && q > 0 {
			result.Quantity = q
		}
	}
	if entry.ExpiresDateMs != "" {
		expires, err := parseMillis(entry.ExpiresDateMs)
		if err != nil {
			return nil, biz.WrapError(biz.KindInvalidReceipt, err, "invalid expires_date_ms")
		}
		result.ExpiresDate = &expires
	}
	return result, nil
}

func parseMillis(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
