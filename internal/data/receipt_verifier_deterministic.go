package data

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/constants"
)

// receiptPayload 离线模式下 receipt_data 解码后的 JSON
type receiptPayload struct {
	TransactionID         string    `json:"transactionId"`
	OriginalTransactionID string    `json:"originalTransactionId"`
	ProductID             string    `json:"productId"`
	Quantity              int       `json:"quantity"`
	PurchaseDate          *flexTime `json:"purchaseDate"`
	ExpiresDate           *flexTime `json:"expiresDate"`
	IsTrial               bool      `json:"isTrial"`
	Environment           string    `json:"environment"`
}

// flexTime 接受 RFC3339 字符串或毫秒时间戳
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// deterministicVerifier 离线/测试用校验器：receipt_data 为 base64 编码的 JSON
type deterministicVerifier struct {
	clock biz.Clock
}

func newDeterministicVerifier(clock biz.Clock) *deterministicVerifier {
	if clock == nil {
		clock = time.Now
	}
	return &deterministicVerifier{clock: clock}
}

// Verify 解码收据并校验交易号、商品与请求一致
func (v *deterministicVerifier) Verify(ctx context.Context, in *biz.VerifyInput) (*biz.VerificationResult, error) {
	raw, err := decodeBase64(in.ReceiptData)
	if err != nil {
		return nil, biz.WrapError(biz.KindInvalidReceipt, err, "receipt_data is not valid base64")
	}
	var payload receiptPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, biz.WrapError(biz.KindInvalidReceipt, err, "receipt_data is not valid json")
	}
	if payload.TransactionID != in.TransactionID {
		return nil, biz.NewError(biz.KindInvalidReceipt, "receipt transaction id does not match request")
	}
	if payload.ProductID != in.ProductID {
		return nil, biz.NewError(biz.KindInvalidReceipt, "receipt product id does not match request")
	}
	if payload.Quantity < 0 {
		return nil, biz.NewError(biz.KindInvalidReceipt, "receipt quantity must not be negative")
	}

	result := &biz.VerificationResult{
		TransactionID:         payload.TransactionID,
		ProductID:             payload.ProductID,
		OriginalTransactionID: payload.OriginalTransactionID,
		Quantity:              payload.Quantity,
		PurchaseDate:          v.clock(),
		IsTrial:               payload.IsTrial,
		Environment:           normalizeEnvironment(payload.Environment, in.Environment),
		Raw:                   string(raw),
	}
	if payload.PurchaseDate != nil && !payload.PurchaseDate.IsZero() {
		result.PurchaseDate = payload.PurchaseDate.Time
	}
	if payload.ExpiresDate != nil && !payload.ExpiresDate.IsZero() {
		expires := payload.ExpiresDate.Time
		result.ExpiresDate = &expires
	}
	return result, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	if b, urlErr := base64.URLEncoding.DecodeString(s); urlErr == nil {
		return b, nil
	}
	return nil, err
}

// normalizeEnvironment 依次取收据环境、请求声明的环境，默认 sandbox
func normalizeEnvironment(candidates ...string) string {
	for _, env := range candidates {
		switch strings.ToLower(strings.TrimSpace(env)) {
		case constants.ReceiptEnvProduction:
			return constants.ReceiptEnvProduction
		case constants.ReceiptEnvSandbox:
			return constants.ReceiptEnvSandbox
		}
	}
	return constants.ReceiptEnvSandbox
}
