package biz

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"entitlement-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// memStore 内存实现的 repo + 事务，整个事务持有互斥锁，失败时回滚到快照
type memStore struct {
	mu       sync.Mutex
	users    map[string]*User
	usage    map[string]int // uid|day
	receipts map[string]*Receipt
	grants   []*PremiumGrant

	// concurrentReceipt 在事务内插入收据之前由"另一个请求"提交，不随本事务回滚
	concurrentReceipt *Receipt
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*User),
		usage:    make(map[string]int),
		receipts: make(map[string]*Receipt),
	}
}

func usageKey(userID, day string) string {
	return userID + "|" + day
}

func (s *memStore) addUser(userID string, plan Plan, credits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = &User{UID: userID, Plan: plan, CreditBalance: credits}
}

func (s *memStore) setUsage(userID, day string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[usageKey(userID, day)] = count
}

func (s *memStore) credits(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].CreditBalance
}

func (s *memStore) receiptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}

func (s *memStore) grantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func (s *memStore) GetUser(ctx context.Context, userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUser(userID), nil
}

func (s *memStore) getUser(userID string) *User {
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (s *memStore) GetUsageCount(ctx context.Context, userID, usageDay string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[usageKey(userID, usageDay)], nil
}

func (s *memStore) DeleteUsageBefore(ctx context.Context, usageDay string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for k := range s.usage {
		day := k[len(k)-len(usageDay):]
		if day < usageDay {
			delete(s.usage, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) GetReceiptByTransactionID(ctx context.Context, transactionID string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[transactionID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ListPremiumGrants(ctx context.Context, userID string) ([]*PremiumGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PremiumGrant
	for _, g := range s.grants {
		if g.UID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[string]*User, len(s.users))
	for k, v := range s.users {
		cp := *v
		users[k] = &cp
	}
	usage := make(map[string]int, len(s.usage))
	for k, v := range s.usage {
		usage[k] = v
	}
	receipts := make(map[string]*Receipt, len(s.receipts))
	for k, v := range s.receipts {
		receipts[k] = v
	}
	grants := append([]*PremiumGrant(nil), s.grants...)

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.users, s.usage, s.receipts, s.grants = users, usage, receipts, grants
		if r := s.concurrentReceipt; r != nil {
			s.receipts[r.TransactionID] = r
			s.concurrentReceipt = nil
		}
		return err
	}
	return nil
}

// memTx 事务内操作，调用方已持有 memStore.mu
type memTx struct {
	s *memStore
}

func (t *memTx) GetUser(ctx context.Context, userID string) (*User, error) {
	return t.s.getUser(userID), nil
}

func (t *memTx) IncrementUsage(ctx context.Context, userID, usageDay string, at time.Time) (int, error) {
	k := usageKey(userID, usageDay)
	t.s.usage[k]++
	return t.s.usage[k], nil
}

func (t *memTx) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	u, ok := t.s.users[userID]
	if !ok || u.CreditBalance <= 0 {
		return false, nil
	}
	u.CreditBalance--
	return true, nil
}

func (t *memTx) AddCredits(ctx context.Context, userID string, amount int) error {
	u, ok := t.s.users[userID]
	if !ok {
		return NewError(KindNotFound, "user %s not found", userID)
	}
	u.CreditBalance += amount
	return nil
}

func (t *memTx) CreateReceipt(ctx context.Context, receipt *Receipt) error {
	if r := t.s.concurrentReceipt; r != nil {
		t.s.receipts[r.TransactionID] = r
	}
	if _, ok := t.s.receipts[receipt.TransactionID]; ok {
		return ErrDuplicateTransaction
	}
	cp := *receipt
	t.s.receipts[receipt.TransactionID] = &cp
	return nil
}

func (t *memTx) CreatePremiumGrant(ctx context.Context, grant *PremiumGrant) error {
	cp := *grant
	t.s.grants = append(t.s.grants, &cp)
	return nil
}

// fakeClock 可调时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// verifierFunc 函数形式的 ReceiptVerifier
type verifierFunc func(ctx context.Context, in *VerifyInput) (*VerificationResult, error)

func (f verifierFunc) Verify(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
	return f(ctx, in)
}

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*PurchaseAppliedEvent
}

func (p *recordingPublisher) PublishPurchaseApplied(ctx context.Context, event *PurchaseAppliedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type testEnv struct {
	store     *memStore
	clock     *fakeClock
	config    *EntitlementConfig
	calendar  *UsageCalendar
	premium   *PremiumUseCase
	usage     *UsageQuotaUseCase
	ent       *EntitlementUseCase
	purchase  *PurchaseUseCase
	retention *UsageRetentionUseCase
	publisher *recordingPublisher
	verify    verifierFunc
}

// echoVerifier 直接信任请求内容的校验器
func echoVerifier(now time.Time) verifierFunc {
	return func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
		return &VerificationResult{
			TransactionID: in.TransactionID,
			ProductID:     in.ProductID,
			Quantity:      in.Quantity,
			PurchaseDate:  now,
			Environment:   "sandbox",
		}, nil
	}
}

var testProducts = map[string]*conf.Product{
	"credits_10":      {CreditsPerUnit: 10},
	"premium_monthly": {PremiumDaysPerUnit: 30},
	"bundle":          {CreditsPerUnit: 5, PremiumDaysPerUnit: 7},
	"empty":           {},
}

func newTestEnv(t *testing.T, now time.Time, mutate func(c *conf.Bootstrap)) *testEnv {
	t.Helper()
	bc := &conf.Bootstrap{
		Env: "test",
		Entitlement: &conf.Entitlement{
			Timezone: "Asia/Seoul",
			Products: testProducts,
		},
	}
	if mutate != nil {
		mutate(bc)
	}
	config, err := NewEntitlementConfig(bc)
	if err != nil {
		t.Fatalf("NewEntitlementConfig: %v", err)
	}
	policy, err := NewUsagePolicy(config)
	if err != nil {
		t.Fatalf("NewUsagePolicy: %v", err)
	}

	env := &testEnv{
		store:     newMemStore(),
		clock:     &fakeClock{now: now},
		config:    config,
		calendar:  NewUsageCalendar(config),
		publisher: &recordingPublisher{},
	}
	env.verify = echoVerifier(now)

	logger := log.DefaultLogger
	clock := Clock(env.clock.Now)
	idGen := NewIDGenerator()
	verifier := verifierFunc(func(ctx context.Context, in *VerifyInput) (*VerificationResult, error) {
		return env.verify(ctx, in)
	})

	env.premium = NewPremiumUseCase(env.store, env.store, idGen, clock, logger)
	env.usage = NewUsageQuotaUseCase(env.store, env.store, env.store, env.premium, policy, env.calendar, config, clock, logger)
	env.ent = NewEntitlementUseCase(env.usage, env.premium, clock, logger)
	env.purchase = NewPurchaseUseCase(env.store, env.store, env.store, verifier, nil, env.publisher, env.ent, config, idGen, clock, logger)
	env.retention = NewUsageRetentionUseCase(env.store, env.calendar, config, clock, logger)
	return env
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}
