package service

import (
	"context"
	"net/http"
	"strconv"

	"entitlement-service/internal/biz"
	entErrors "entitlement-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// MetadataCode 错误元数据中的数字错误码
const MetadataCode = "code"

// ReasonInternal 未预期错误的 reason
const ReasonInternal = "INTERNAL"

// httpStatus 业务错误类型对应的 HTTP 状态码
func httpStatus(kind biz.ErrorKind) int {
	switch kind {
	case biz.KindNotFound:
		return http.StatusNotFound
	case biz.KindConflict:
		return http.StatusConflict
	case biz.KindInvalidReceipt:
		return http.StatusUnprocessableEntity
	case biz.KindVerificationFailed:
		return http.StatusBadGateway
	case biz.KindUnsupportedPlatform:
		return http.StatusBadRequest
	case biz.KindUnsupportedProduct:
		return http.StatusBadRequest
	case biz.KindNothingToGrant:
		return http.StatusUnprocessableEntity
	case biz.KindUsageLimitExceeded:
		return http.StatusTooManyRequests
	case biz.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// toAPIError 业务错误转为 kratos 错误（保留原始业务错误作为 cause）
// 未预期错误只记录日志，不把底层原因返回给客户端
func toAPIError(ctx context.Context, logger *log.Helper, op string, err error) error {
	be, ok := biz.AsError(err)
	if !ok {
		logger.WithContext(ctx).Errorf("%s failed: %v", op, err)
		msg := orDefault(pkgErrors.GetErrorMessage(i18nPkg.Language(ctx), int32(entErrors.ErrCodeInternal)), "internal error")
		return kerrors.InternalServer(ReasonInternal, msg).
			WithMetadata(map[string]string{MetadataCode: strconv.Itoa(entErrors.ErrCodeInternal)})
	}
	return kerrors.New(httpStatus(be.Kind), be.Kind.String(), localizedMessage(ctx, be)).
		WithMetadata(map[string]string{MetadataCode: strconv.Itoa(be.Kind.Code())}).
		WithCause(be)
}

// localizedMessage 按请求语言取错误码对应的消息，没有翻译时使用业务错误自带的消息
func localizedMessage(ctx context.Context, be *biz.Error) string {
	return orDefault(pkgErrors.GetErrorMessage(i18nPkg.Language(ctx), int32(be.Kind.Code())), be.Message)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
