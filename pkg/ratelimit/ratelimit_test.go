package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(3, 1)

	// 桶初始为满，允许突发
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("第 %d 次取令牌应成功", i+1)
		}
	}
	if tb.Allow() {
		t.Fatal("桶空后不应再放行")
	}
}

func TestTokenBucketRemaining(t *testing.T) {
	tb := NewTokenBucket(5, 10)
	if got := tb.Remaining(); got != 5 {
		t.Fatalf("初始剩余令牌 = %d, 期望 5", got)
	}
	tb.Allow()
	tb.Allow()
	if got := tb.Remaining(); got != 3 {
		t.Fatalf("剩余令牌 = %d, 期望 3", got)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	if !tb.Allow() {
		t.Fatal("首个令牌应可用")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Wait 应随 ctx 超时返回, got %v", err)
	}
}

func TestWaitReturnsWhenTokenAvailable(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := tb.Wait(ctx); err != nil {
		t.Fatalf("有令牌时 Wait 不应失败: %v", err)
	}
}
