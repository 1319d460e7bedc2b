package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"entitlement-service/internal/biz"
)

func TestPremiumStatusJSON(t *testing.T) {
	expires := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status *biz.PremiumStatus
		want   []string
	}{
		{
			name:   "not premium",
			status: &biz.PremiumStatus{},
			want:   []string{`"is_premium":false`, `"source":null`, `"expires_at":null`, `"grants":[]`},
		},
		{
			name:   "premium",
			status: &biz.PremiumStatus{IsPremium: true, Source: biz.GrantSourcePurchase, DaysRemaining: 26, ExpiresAt: &expires},
			want:   []string{`"is_premium":true`, `"source":"PURCHASE"`, `"expires_at":"2024-12-01T00:00:00Z"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(toPremiumStatus(tt.status))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(b), w) {
					t.Errorf("%s missing %s", b, w)
				}
			}
		})
	}
}
