package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// 接続待ちの指数バックオフ設定。
const (
	initialConnectBackoff = 500 * time.Millisecond
	maxConnectBackoff     = 8 * time.Second
)

// Pinger はDBの疎通確認を抽象化するインターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ConnectBackoff は失敗回数に基づく待機時間を返す。
// 初回500ms、2倍ずつ増加、最大8秒。
func ConnectBackoff(failures int) time.Duration {
	delay := initialConnectBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxConnectBackoff {
			return maxConnectBackoff
		}
	}
	return delay
}

// WaitForReady はDBが応答するまで最大attempts回Pingを試行する。
// コンテナ起動直後などDBの準備が整う前に接続する場合に使う。
func WaitForReady(ctx context.Context, db Pinger, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := ConnectBackoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", lastErr.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("database wait cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}
