package buffer

import (
	"fmt"
	"testing"
	"time"

	"github.com/c360/pixelflow/metric"
	"github.com/c360/pixelflow/payload"
)

// BenchmarkPushPop benchmarks a push immediately followed by a pop.
func BenchmarkPushPop(b *testing.B) {
	sizes := []struct {
		name          string
		width, height int
	}{
		{"1x1", 1, 1},
		{"64x64", 64, 64},
		{"512x512", 512, 512},
	}

	for _, sz := range sizes {
		b.Run(sz.name, func(b *testing.B) {
			q, err := New(10)
			if err != nil {
				b.Fatal(err)
			}
			img := payload.New("bench.png", sz.width, sz.height, 3)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := q.Push(img); err != nil {
					b.Fatal(err)
				}
				if _, _, err := q.Pop(time.Second); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPushPopWithMetrics measures the overhead of Prometheus export.
func BenchmarkPushPopWithMetrics(b *testing.B) {
	q, err := New(10, WithMetrics(metric.NewMetricsRegistry(), "bench"))
	if err != nil {
		b.Fatal(err)
	}
	img := payload.New("bench.png", 8, 8, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = q.Push(img)
		_, _, _ = q.Pop(time.Second)
	}
}

// BenchmarkSnapshot benchmarks observer snapshots across capacities.
func BenchmarkSnapshot(b *testing.B) {
	for _, capacity := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("Cap_%d", capacity), func(b *testing.B) {
			q, err := New(capacity)
			if err != nil {
				b.Fatal(err)
			}
			img := payload.New("bench.png", 1, 1, 3)
			for i := 0; i < capacity/2; i++ {
				_, _ = q.Push(img)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = q.Snapshot()
			}
		})
	}
}

// BenchmarkProducerConsumer runs parallel producers against one draining consumer.
func BenchmarkProducerConsumer(b *testing.B) {
	q, err := New(100)
	if err != nil {
		b.Fatal(err)
	}
	img := payload.New("bench.png", 4, 4, 3)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			_, fut, err := q.Pop(10 * time.Millisecond)
			if err == nil {
				fut.Resolve(nil, nil)
			}
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = q.Push(img)
		}
	})
	b.StopTimer()
	close(done)
}
