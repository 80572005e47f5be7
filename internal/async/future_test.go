package async

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureSettlesOnce(t *testing.T) {
	f := New[int]()
	if s, _, _ := f.Poll(); s != Pending {
		t.Fatalf("new future state = %v, want pending", s)
	}

	f.Resolve(7)
	f.Reject(errors.New("late"))
	f.Resolve(9)

	s, v, err := f.Poll()
	if s != Resolved || v != 7 || err != nil {
		t.Errorf("Poll = %v %v %v, want resolved 7 <nil>", s, v, err)
	}
}

func TestGo(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		fn        func(context.Context) (string, error)
		wantState State
		wantErr   error
	}{
		{"value", func(context.Context) (string, error) { return "mesh", nil }, Resolved, nil},
		{"error", func(context.Context) (string, error) { return "", boom }, Failed, boom},
		{"panic", func(context.Context) (string, error) { panic("bad asset") }, Failed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			f := Go(ctx, tt.fn)
			_, err := f.Wait(ctx)
			if got := f.State(); got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantState == Failed && err == nil {
				t.Error("failed future returned nil error")
			}
		})
	}
}

func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New[int]().Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait err = %v, want context.Canceled", err)
	}
}

func TestSettledConstructors(t *testing.T) {
	if s := ResolvedWith(1).State(); s != Resolved {
		t.Errorf("ResolvedWith state = %v", s)
	}
	if s := FailedWith[int](errors.New("x")).State(); s != Failed {
		t.Errorf("FailedWith state = %v", s)
	}
	select {
	case <-ResolvedWith("x").Done():
	default:
		t.Error("Done not closed for settled future")
	}
}
