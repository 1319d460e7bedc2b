package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"entitlement-service/internal/biz"
	entErrors "entitlement-service/internal/errors"
	"entitlement-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

type decoded struct {
	OK      bool            `json:"ok"`
	Code    int             `json:"code"`
	Reason  string          `json:"reason"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decoded {
	t.Helper()
	var d decoded
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return d
}

func TestEncodeResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := encodeResponse(rec, httptest.NewRequest(http.MethodGet, "/", nil), map[string]int{"credits": 10}); err != nil {
		t.Fatalf("encodeResponse: %v", err)
	}
	d := decode(t, rec)
	if rec.Code != http.StatusOK || !d.OK || string(d.Data) != `{"credits":10}` {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestEncodeErrorUsageLimit(t *testing.T) {
	be := &biz.Error{
		Kind:    biz.KindUsageLimitExceeded,
		Message: "daily usage limit reached",
		Limit: &biz.UsageLimitDetail{
			Limit:    3,
			Used:     3,
			ResetsAt: time.Date(2024, 11, 5, 15, 0, 0, 0, time.UTC),
		},
	}
	err := kerrors.New(http.StatusTooManyRequests, be.Kind.String(), be.Message).
		WithMetadata(map[string]string{service.MetadataCode: strconv.Itoa(be.Kind.Code())}).
		WithCause(be)

	rec := httptest.NewRecorder()
	encodeError(rec, httptest.NewRequest(http.MethodPost, "/v1/usage/consume", nil), err)

	d := decode(t, rec)
	if rec.Code != http.StatusTooManyRequests || d.OK || d.Reason != "USAGE_LIMIT_EXCEEDED" || d.Code != entErrors.ErrCodeUsageLimitExceeded {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	var limit biz.UsageLimitDetail
	if err := json.Unmarshal(d.Data, &limit); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if limit.Limit != 3 || limit.Used != 3 || limit.Remaining != 0 {
		t.Errorf("limit = %+v", limit)
	}
}

func TestEncodeErrorFallbackCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		// 请求体绑定失败等框架错误没有 code 元数据
		{"bad request", kerrors.BadRequest("CODEC", "invalid body"), http.StatusBadRequest, entErrors.ErrCodeInvalidArgument},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, entErrors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			encodeError(rec, httptest.NewRequest(http.MethodPost, "/", nil), tt.err)
			d := decode(t, rec)
			if rec.Code != tt.wantStatus || d.Code != tt.wantCode || d.OK {
				t.Errorf("got %d code=%d, want %d code=%d", rec.Code, d.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}
