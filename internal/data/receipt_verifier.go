package data

import (
	"context"
	"fmt"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/conf"
	"entitlement-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// NewReceiptVerifier 根据 verifier.mode 创建收据校验器
// deterministic 模式不访问外部服务，只允许在非生产环境使用
func NewReceiptVerifier(c *conf.Bootstrap, clock biz.Clock, logger log.Logger) (biz.ReceiptVerifier, func(), error) {
	if c.Verifier == nil || c.Verifier.Mode == "" {
		return nil, nil, fmt.Errorf("verifier.mode is required")
	}
	switch c.Verifier.Mode {
	case constants.VerifierModeDeterministic:
		if c.Env == constants.EnvProduction {
			return nil, nil, fmt.Errorf("verifier mode %s is not allowed in %s", constants.VerifierModeDeterministic, constants.EnvProduction)
		}
		return newDeterministicVerifier(clock), func() {}, nil
	case constants.VerifierModeExternal:
		appStore, err := newAppStoreVerifier(c.Verifier, logger)
		if err != nil {
			return nil, nil, err
		}
		return &platformVerifier{appStore: appStore}, appStore.close, nil
	default:
		return nil, nil, fmt.Errorf("unknown verifier mode %q", c.Verifier.Mode)
	}
}

// platformVerifier 按平台分发到外部校验
type platformVerifier struct {
	appStore *appStoreVerifier
}

// Verify 校验收据
func (v *platformVerifier) Verify(ctx context.Context, in *biz.VerifyInput) (*biz.VerificationResult, error) {
	switch in.Platform {
	case biz.PlatformAppStore:
		return v.appStore.Verify(ctx, in)
	case biz.PlatformGooglePlay:
		// TODO: Google Play Developer API purchases.products.get
		return nil, biz.NewError(biz.KindUnsupportedPlatform, "google play verification is not implemented")
	default:
		return nil, biz.NewError(biz.KindUnsupportedPlatform, "unsupported platform %s", in.Platform)
	}
}
