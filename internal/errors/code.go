package errors

import (
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
)

func init() {
	// 初始化全局错误管理器（错误码对应的多语言消息在 i18n 目录下）
	pkgErrors.InitGlobalErrorManager("i18n", i18nPkg.Language)
}

// Entitlement Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Entitlement 固定为 21
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   00: 通用模块（复用 go-pkg 通用错误码）
//   01: 用户模块
//   02: 配额模块
//   03: 收据校验模块
//   04: 购买模块
//   05-99: 预留扩展

// 通用模块错误码 (210000-210099)
const (
	// ErrCodeInternal 内部错误（不向客户端透出原因）
	ErrCodeInternal = 210001
	// ErrCodeInvalidArgument 参数错误
	ErrCodeInvalidArgument = 210002
)

// 用户模块错误码 (210100-210199)
const (
	// ErrCodeUserNotFound 用户不存在
	ErrCodeUserNotFound = 210101
)

// 配额模块错误码 (210200-210299)
const (
	// ErrCodeUsageLimitExceeded 当日额度已用完且无积分
	ErrCodeUsageLimitExceeded = 210201
)

// 收据校验模块错误码 (210300-210399)
const (
	// ErrCodeInvalidReceipt 收据格式错误或与请求不匹配
	ErrCodeInvalidReceipt = 210301
	// ErrCodeVerificationFailed 平台校验失败
	ErrCodeVerificationFailed = 210302
	// ErrCodeUnsupportedPlatform 不支持的平台
	ErrCodeUnsupportedPlatform = 210303
)

// 购买模块错误码 (210400-210499)
const (
	// ErrCodeTransactionConflict 交易号已被其他用户使用
	ErrCodeTransactionConflict = 210401
	// ErrCodeUnsupportedProduct 商品不在目录中
	ErrCodeUnsupportedProduct = 210402
	// ErrCodeNothingToGrant 计算后无可发放内容
	ErrCodeNothingToGrant = 210403
)
