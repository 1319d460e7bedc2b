package conf

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: `"1.5s"`, want: 1500 * time.Millisecond},
		{in: `"30s"`, want: 30 * time.Second},
		{in: `1000000`, want: time.Millisecond},
		{in: `"soon"`, wantErr: true},
		{in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", d.Duration)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if d.AsDuration() != tt.want {
				t.Errorf("got %s, want %s", d.AsDuration(), tt.want)
			}
		})
	}
}

func TestBootstrapUnmarshal(t *testing.T) {
	raw := `{
		"env": "development",
		"entitlement": {
			"timezone": "Asia/Seoul",
			"daily_limits": {"FREE": 3},
			"purchase_lock_expiry": "10s"
		},
		"verifier": {"mode": "deterministic", "rate_limit": {"rps": 5, "burst": 2}}
	}`
	var bc Bootstrap
	if err := json.Unmarshal([]byte(raw), &bc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if bc.Entitlement.DailyLimits["FREE"] != 3 {
		t.Errorf("daily_limits = %v", bc.Entitlement.DailyLimits)
	}
	if bc.Entitlement.PurchaseLockExpiry.AsDuration() != 10*time.Second {
		t.Errorf("purchase_lock_expiry = %s", bc.Entitlement.PurchaseLockExpiry.AsDuration())
	}
	if bc.Verifier.RateLimit.Burst != 2 {
		t.Errorf("rate_limit = %+v", bc.Verifier.RateLimit)
	}

	var nilDuration *Duration
	if nilDuration.AsDuration() != 0 {
		t.Error("nil Duration should be zero")
	}
}
