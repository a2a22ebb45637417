package workerpool

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkTaskExecution(b *testing.B) {
	pool := NewWithConfig(Config{WorkerCount: 4, QueueSize: 1000, DiscardResults: true})
	defer func() { <-pool.Shutdown() }()

	task := TaskFunc(func(ctx context.Context) error { return nil })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = pool.Submit(task)
		}
	})
}

func BenchmarkWorkerPoolScaling(b *testing.B) {
	for _, workers := range []int{1, 2, 4, 8, 16} {
		b.Run(fmt.Sprintf("workers-%d", workers), func(b *testing.B) {
			pool := NewWithConfig(Config{WorkerCount: workers, QueueSize: workers * 2, DiscardResults: true})
			task := TaskFunc(func(ctx context.Context) error {
				sum := 0
				for i := 0; i < 1000; i++ {
					sum += i
				}
				_ = sum
				return nil
			})

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = pool.Submit(task)
			}
			<-pool.Shutdown()
		})
	}
}

func BenchmarkQueueSizeImpact(b *testing.B) {
	for _, size := range []int{0, 10, 100, 1000} {
		b.Run(fmt.Sprintf("queue-%d", size), func(b *testing.B) {
			pool := NewWithConfig(Config{WorkerCount: 4, QueueSize: size, DiscardResults: true})
			task := TaskFunc(func(ctx context.Context) error { return nil })

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = pool.Submit(task)
			}
			<-pool.Shutdown()
		})
	}
}
