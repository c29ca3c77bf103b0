package workflow_test

import (
	"testing"
	"time"

	"shelfmark/internal/testsupport"
	"shelfmark/internal/workflow"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryPolicy(5, 300, 8))
	st := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, st, nil)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{6, 160 * time.Second},
		{7, 300 * time.Second},
		{8, 300 * time.Second},
		{20, 300 * time.Second},
		{0, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := manager.BackoffDelay(tc.attempt); got != tc.want {
			t.Fatalf("BackoffDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
