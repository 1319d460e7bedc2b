package server

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"strconv"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/conf"
	entErrors "entitlement-service/internal/errors"
	"entitlement-service/internal/service"

	"github.com/gaoyong06/go-pkg/middleware/i18n"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(c *conf.Bootstrap, entitlement *service.EntitlementService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			i18n.Middleware(),
			logging.Server(logger),
		),
		http.ResponseEncoder(encodeResponse),
		http.ErrorEncoder(encodeError),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Server.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)
	RegisterEntitlementHTTPServer(srv, entitlement)
	srv.Handle("/metrics", promhttp.Handler())
	return srv
}

// envelope 统一响应结构
type envelope struct {
	OK      bool        `json:"ok"`
	Code    int         `json:"code,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w stdhttp.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// encodeResponse 成功响应 {ok: true, data}
func encodeResponse(w stdhttp.ResponseWriter, r *stdhttp.Request, v interface{}) error {
	return writeJSON(w, stdhttp.StatusOK, envelope{OK: true, Data: v})
}

// encodeError 失败响应 {ok: false, code, reason, message, data?}
// 额度用尽时 data 携带 {limit, used, remaining, credits, resets_at}
func encodeError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	resp := envelope{
		Reason:  se.Reason,
		Message: se.Message,
	}
	if code, convErr := strconv.Atoi(se.Metadata[service.MetadataCode]); convErr == nil {
		resp.Code = code
	} else if se.Code == stdhttp.StatusBadRequest {
		resp.Code = entErrors.ErrCodeInvalidArgument
	} else {
		resp.Code = entErrors.ErrCodeInternal
	}
	var be *biz.Error
	if errors.As(err, &be) && be.Limit != nil {
		resp.Data = be.Limit
	}

	status := int(se.Code)
	if status < 400 || status > 599 {
		status = stdhttp.StatusInternalServerError
	}
	_ = writeJSON(w, status, resp)
}
