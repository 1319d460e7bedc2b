package biz

import (
	"testing"
	"time"
)

func TestUsagePolicyDefaults(t *testing.T) {
	p, err := NewUsagePolicy(&EntitlementConfig{})
	if err != nil {
		t.Fatalf("NewUsagePolicy: %v", err)
	}
	tests := []struct {
		plan Plan
		want int
	}{
		{PlanFree, 3},
		{PlanStandard, 10},
		{PlanPremium, 30},
	}
	for _, tt := range tests {
		if got := p.DailyLimit(tt.plan); got != tt.want {
			t.Errorf("DailyLimit(%s) = %d, want %d", tt.plan, got, tt.want)
		}
	}
}

func TestUsagePolicyOverrides(t *testing.T) {
	p, err := NewUsagePolicy(&EntitlementConfig{DailyLimits: map[string]int32{"free": 5, "PREMIUM": 0}})
	if err != nil {
		t.Fatalf("NewUsagePolicy: %v", err)
	}
	if got := p.DailyLimit(PlanFree); got != 5 {
		t.Errorf("DailyLimit(FREE) = %d, want 5", got)
	}
	if got := p.DailyLimit(PlanPremium); got != 0 {
		t.Errorf("DailyLimit(PREMIUM) = %d, want 0", got)
	}
	if got := p.DailyLimit(PlanStandard); got != 10 {
		t.Errorf("DailyLimit(STANDARD) = %d, want 10", got)
	}
}

func TestUsagePolicyRejectsBadConfig(t *testing.T) {
	tests := map[string]map[string]int32{
		"unknown plan":   {"GOLD": 3},
		"negative limit": {"FREE": -1},
	}
	for name, limits := range tests {
		if _, err := NewUsagePolicy(&EntitlementConfig{DailyLimits: limits}); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestUsageCalendarUsesConfiguredTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	cal := NewUsageCalendar(&EntitlementConfig{Location: loc})

	tests := []struct {
		at   time.Time
		want string
	}{
		// 14:59:59Z 是首尔 23:59:59
		{time.Date(2024, 11, 4, 14, 59, 59, 0, time.UTC), "2024-11-04"},
		{time.Date(2024, 11, 4, 15, 0, 0, 0, time.UTC), "2024-11-05"},
		{time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC), "2025-01-01"},
	}
	for _, tt := range tests {
		if got := cal.Day(tt.at); got != tt.want {
			t.Errorf("Day(%s) = %s, want %s", tt.at, got, tt.want)
		}
	}

	next := cal.NextReset(time.Date(2024, 11, 4, 14, 59, 59, 0, time.UTC))
	if want := time.Date(2024, 11, 4, 15, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("NextReset = %s, want %s", next, want)
	}

	resets, err := cal.ResetsAt("2024-11-05")
	if err != nil {
		t.Fatalf("ResetsAt: %v", err)
	}
	if want := time.Date(2024, 11, 5, 15, 0, 0, 0, time.UTC); !resets.Equal(want) {
		t.Errorf("ResetsAt = %s, want %s", resets, want)
	}

	if _, err := cal.ResetsAt("2024/11/05"); err == nil {
		t.Error("expected error for malformed usage day")
	}
}
