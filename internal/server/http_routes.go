package server

import (
	"context"

	"entitlement-service/internal/service"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationProcessPurchase  = "/entitlement.v1.Entitlement/ProcessPurchase"
	OperationConsumeUsage     = "/entitlement.v1.Entitlement/ConsumeUsage"
	OperationEvaluateUsage    = "/entitlement.v1.Entitlement/EvaluateUsage"
	OperationRecordUsage      = "/entitlement.v1.Entitlement/RecordUsage"
	OperationGetEntitlement   = "/entitlement.v1.Entitlement/GetEntitlement"
	OperationGetPremiumStatus = "/entitlement.v1.Entitlement/GetPremiumStatus"
	OperationGrantPremium     = "/entitlement.v1.Entitlement/GrantPremium"
)

// RegisterEntitlementHTTPServer 注册权益服务路由
func RegisterEntitlementHTTPServer(s *http.Server, svc *service.EntitlementService) {
	r := s.Route("/")
	r.POST("/v1/purchases", processPurchaseHandler(svc))
	r.POST("/v1/usage/consume", consumeUsageHandler(svc))
	r.POST("/v1/usage/evaluate", evaluateUsageHandler(svc))
	r.POST("/v1/usage/record", recordUsageHandler(svc))
	r.GET("/v1/users/{user_id}/entitlement", getEntitlementHandler(svc))
	r.GET("/v1/users/{user_id}/premium", getPremiumStatusHandler(svc))
	r.POST("/v1/premium/grants", grantPremiumHandler(svc))
}

func processPurchaseHandler(svc *service.EntitlementService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.PurchaseRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationProcessPurchase)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.ProcessPurchase(ctx, req.(*service.PurchaseRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func consumeUsageHandler(svc *service.EntitlementService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.UserRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationConsumeUsage)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.ConsumeUsage(ctx, req.(*service.UserRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func evaluateUsageHandler(svc *service.EntitlementService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.UserRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationEvaluateUsage)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.EvaluateUsage(ctx, req.(*service.UserRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func recordUsageHandler(svc *service.EntitlementService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.RecordUsageRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationRecordUsage)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.RecordUsage(ctx, req.(*service.RecordUsageRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func getEntitlementHandler(svc *service.EntitlementService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := service.UserRequest{UserID: ctx.Vars().Get("user_id")}
		http.SetOperation(ctx, OperationGetEntitlement)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.GetEntitlement(ctx, req.(*service.UserRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func getPremiumStatusHandler(svc *service.EntitlementService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := service.UserRequest{UserID: ctx.Vars().Get("user_id")}
		http.SetOperation(ctx, OperationGetPremiumStatus)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.GetPremiumStatus(ctx, req.(*service.UserRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func grantPremiumHandler(svc *service.EntitlementService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.GrantPremiumRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationGrantPremium)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return svc.GrantPremium(ctx, req.(*service.GrantPremiumRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
