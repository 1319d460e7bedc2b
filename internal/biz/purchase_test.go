package biz

import (
	"context"
	"errors"
	"testing"
	"time"
)

func purchaseParams(userID, txID, productID string) *ProcessPurchaseParams {
	return &ProcessPurchaseParams{
		UID:           userID,
		Platform:      string(PlatformAppStore),
		ProductID:     productID,
		TransactionID: txID,
		ReceiptData:   "cmVjZWlwdA==",
	}
}

func TestProcessPurchaseGrantsCredits(t *testing.T) {
	env := newTestEnv(t, testNow, nil)
	env.store.addUser("u1", PlanFree, 2)
	ctx := context.Background()

	p := purchaseParams("u1", "tx-1", "credits_10")
	p.Quantity = 2
	res, err := env.purchase.ProcessPurchase(ctx, p)
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	if res.CreditsGranted != 20 {
		t.Errorf("CreditsGranted = %d, want 20", res.CreditsGranted)
	}
	if res.Usage.Credits != 22 {
		t.Errorf("Usage.Credits = %d, want 22", res.Usage.Credits)
	}
	if res.Premium.IsPremium {
		t.Error("credit product must not grant premium")
	}
	if got := env.publisher.count(); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}

	r, _ := env.store.GetReceiptByTransactionID(ctx, "tx-1")
	if r == nil || r.UID != "u1" || r.Quantity != 2 || r.CreditsGranted != 20 || r.PremiumDays != 0 {
		t.Fatalf("unexpected receipt %+v", r)
	}
}

func TestProcessPurchaseIsIdempotent(t *testing.T) {
	env := newTestEnv(t, testNow, nil)
	env.store.addUser("u1", PlanFree, 0)
	ctx := context.Background()

	verifyCalls := 0
	inner := env.verify
	env.verify = func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
		verifyCalls++
		return inner(ctx, in)
	}

	first, err := env.purchase.ProcessPurchase(ctx, purchaseParams("u1", "tx-1", "credits_10"))
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	second, err := env.purchase.ProcessPurchase(ctx, purchaseParams("u1", "tx-1", "credits_10"))
	if err != nil {
		t.Fatalf("replayed purchase: %v", err)
	}

	if first.CreditsGranted != 10 || second.CreditsGranted != 0 {
		t.Errorf("CreditsGranted = %d/%d, want 10/0", first.CreditsGranted, second.CreditsGranted)
	}
	if got := env.store.credits("u1"); got != 10 {
		t.Errorf("credit balance = %d, want 10", got)
	}
	if second.Usage.Credits != 10 {
		t.Errorf("replay snapshot credits = %d, want 10", second.Usage.Credits)
	}
	if verifyCalls != 1 {
		t.Errorf("verify calls = %d, want 1", verifyCalls)
	}
	if got := env.store.receiptCount(); got != 1 {
		t.Errorf("receipts = %d, want 1", got)
	}
	if got := env.publisher.count(); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}
}

func TestProcessPurchaseConflict(t *testing.T) {
	env := newTestEnv(t, testNow, nil)
	env.store.addUser("u1", PlanFree, 0)
	env.store.addUser("u2", PlanFree, 0)
	ctx := context.Background()

	if _, err := env.purchase.ProcessPurchase(ctx, purchaseParams("u1", "tx-1", "credits_10")); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	_, err := env.purchase.ProcessPurchase(ctx, purchaseParams("u2", "tx-1", "credits_10"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want Conflict", err)
	}
	if got := env.store.credits("u2"); got != 0 {
		t.Errorf("u2 credits = %d, want 0", got)
	}
}

func TestProcessPurchaseConcurrentDuplicate(t *testing.T) {
	tests := []struct {
		name      string
		owner     string
		wantErr   ErrorKind
		wantGrant int
	}{
		{name: "same user replays", owner: "u1"},
		{name: "other user conflicts", owner: "u2", wantErr: KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testNow, nil)
			env.store.addUser("u1", PlanFree, 0)
			env.store.addUser("u2", PlanFree, 0)
			// 另一个请求在本事务插入收据之前已提交同一交易号
			env.store.concurrentReceipt = &Receipt{ID: "r-other", TransactionID: "tx-1", UID: tt.owner}

			res, err := env.purchase.ProcessPurchase(context.Background(), purchaseParams("u1", "tx-1", "credits_10"))
			if tt.wantErr != 0 {
				assertKind(t, err, tt.wantErr)
			} else {
				if err != nil {
					t.Fatalf("ProcessPurchase: %v", err)
				}
				if res.CreditsGranted != 0 {
					t.Errorf("CreditsGranted = %d, want 0", res.CreditsGranted)
				}
			}
			// 本事务回滚，积分未发放
			if got := env.store.credits("u1"); got != 0 {
				t.Errorf("credits = %d, want 0", got)
			}
			if got := env.publisher.count(); got != 0 {
				t.Errorf("events = %d, want 0", got)
			}
		})
	}
}

func TestProcessPurchasePremiumDays(t *testing.T) {
	purchased := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	expires := purchased.Add(30*24*time.Hour + time.Hour)

	tests := []struct {
		name     string
		product  string
		quantity int
		expires  *time.Time
		wantDays int
		wantEnd  time.Time
	}{
		{
			name:     "days per unit times quantity",
			product:  "premium_monthly",
			quantity: 2,
			wantDays: 60,
			wantEnd:  purchased.Add(60 * 24 * time.Hour),
		},
		{
			name:     "subscription expiry rounds up",
			product:  "premium_monthly",
			expires:  &expires,
			wantDays: 31,
			wantEnd:  expires,
		},
		{
			name:     "expiry before purchase falls back to catalog",
			product:  "premium_monthly",
			expires:  timePtr(purchased.Add(-time.Hour)),
			wantDays: 30,
			wantEnd:  purchased.Add(30 * 24 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testNow, nil)
			env.store.addUser("u1", PlanFree, 0)
			env.verify = func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
				return &VerificationResult{
					TransactionID: in.TransactionID,
					ProductID:     in.ProductID,
					Quantity:      tt.quantity,
					PurchaseDate:  purchased,
					ExpiresDate:   tt.expires,
				}, nil
			}

			res, err := env.purchase.ProcessPurchase(context.Background(), purchaseParams("u1", "tx-1", tt.product))
			if err != nil {
				t.Fatalf("ProcessPurchase: %v", err)
			}
			grants, _ := env.store.ListPremiumGrants(context.Background(), "u1")
			if len(grants) != 1 {
				t.Fatalf("grants = %d, want 1", len(grants))
			}
			g := grants[0]
			if g.Days != tt.wantDays || !g.EndDate.Equal(tt.wantEnd) || !g.StartDate.Equal(purchased) {
				t.Errorf("grant = %d days %s..%s, want %d days ending %s", g.Days, g.StartDate, g.EndDate, tt.wantDays, tt.wantEnd)
			}
			if g.Source != GrantSourcePurchase || g.ReceiptID == "" {
				t.Errorf("grant source/receipt = %s/%q", g.Source, g.ReceiptID)
			}
			if !res.Premium.IsPremium || res.Usage.Limit != 30 {
				t.Errorf("premium = %v limit = %d, want active PREMIUM", res.Premium.IsPremium, res.Usage.Limit)
			}
		})
	}
}

func TestProcessPurchaseCreditProductIgnoresExpiry(t *testing.T) {
	env := newTestEnv(t, testNow, nil)
	env.store.addUser("u1", PlanFree, 0)
	purchased := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	env.verify = func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
		return &VerificationResult{
			TransactionID: in.TransactionID,
			ProductID:     in.ProductID,
			PurchaseDate:  purchased,
			ExpiresDate:   timePtr(purchased.Add(30 * 24 * time.Hour)),
		}, nil
	}

	res, err := env.purchase.ProcessPurchase(context.Background(), purchaseParams("u1", "tx-1", "credits_10"))
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	if res.CreditsGranted != 10 || res.Premium.IsPremium {
		t.Errorf("credits = %d premium = %v, want 10 and not premium", res.CreditsGranted, res.Premium.IsPremium)
	}
	if got := env.store.grantCount(); got != 0 {
		t.Errorf("grants = %d, want 0", got)
	}
}

func TestProcessPurchaseNilRequest(t *testing.T) {
	env := newTestEnv(t, testNow, nil)
	_, err := env.purchase.ProcessPurchase(context.Background(), nil)
	assertKind(t, err, KindInvalidArgument)
}

func TestProcessPurchaseBundle(t *testing.T) {
	env := newTestEnv(t, testNow, nil)
	env.store.addUser("u1", PlanStandard, 0)
	res, err := env.purchase.ProcessPurchase(context.Background(), purchaseParams("u1", "tx-1", "bundle"))
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	if res.CreditsGranted != 5 || !res.Premium.IsPremium || res.Premium.DaysRemaining != 7 {
		t.Errorf("unexpected result credits=%d premium=%+v", res.CreditsGranted, res.Premium)
	}
}

func TestProcessPurchaseRejections(t *testing.T) {
	tests := []struct {
		name   string
		params *ProcessPurchaseParams
		verify verifierFunc
		want   ErrorKind
	}{
		{
			name:   "unknown user",
			params: purchaseParams("missing", "tx-1", "credits_10"),
			want:   KindNotFound,
		},
		{
			name:   "unknown product",
			params: purchaseParams("u1", "tx-1", "credits_999"),
			want:   KindUnsupportedProduct,
		},
		{
			name:   "product grants nothing",
			params: purchaseParams("u1", "tx-1", "empty"),
			want:   KindNothingToGrant,
		},
		{
			name: "unsupported platform",
			params: &ProcessPurchaseParams{
				UID: "u1", Platform: "STEAM", ProductID: "credits_10", TransactionID: "tx-1", ReceiptData: "x",
			},
			want: KindUnsupportedPlatform,
		},
		{
			name:   "missing transaction id",
			params: purchaseParams("u1", "", "credits_10"),
			want:   KindInvalidArgument,
		},
		{
			name:   "forged receipt",
			params: purchaseParams("u1", "tx-1", "credits_10"),
			verify: func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
				return nil, NewError(KindInvalidReceipt, "receipt transaction id does not match request")
			},
			want: KindInvalidReceipt,
		},
		{
			name:   "verified product differs from request",
			params: purchaseParams("u1", "tx-1", "credits_10"),
			verify: func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
				return &VerificationResult{TransactionID: in.TransactionID, ProductID: "premium_monthly", PurchaseDate: testNow}, nil
			},
			want: KindInvalidReceipt,
		},
		{
			name:   "verifier transport failure",
			params: purchaseParams("u1", "tx-1", "credits_10"),
			verify: func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
				return nil, errors.New("connection reset")
			},
			want: KindVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testNow, nil)
			env.store.addUser("u1", PlanFree, 0)
			if tt.verify != nil {
				env.verify = tt.verify
			}
			_, err := env.purchase.ProcessPurchase(context.Background(), tt.params)
			assertKind(t, err, tt.want)
			if got := env.store.receiptCount(); got != 0 {
				t.Errorf("receipts = %d, want 0", got)
			}
			if got := env.store.credits("u1"); got != 0 {
				t.Errorf("credits = %d, want 0", got)
			}
			if got := env.store.grantCount(); got != 0 {
				t.Errorf("grants = %d, want 0", got)
			}
		})
	}
}

func TestGetEntitlement(t *testing.T) {
	env := newTestEnv(t, testNow, nil)
	env.store.addUser("u1", PlanFree, 4)
	env.store.setUsage("u1", testDay, 3)

	ent, err := env.ent.GetEntitlement(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetEntitlement: %v", err)
	}
	if !ent.Allowed || !ent.ConsumeCredit {
		t.Errorf("Allowed/ConsumeCredit = %v/%v, want true/true", ent.Allowed, ent.ConsumeCredit)
	}
	if ent.Usage.Credits != 4 || ent.Usage.Remaining != 0 || ent.Usage.ConsumedCredit {
		t.Errorf("unexpected usage %+v", ent.Usage)
	}
	if ent.Premium == nil || ent.Premium.IsPremium {
		t.Errorf("unexpected premium %+v", ent.Premium)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
