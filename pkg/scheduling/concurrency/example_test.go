package concurrency

import (
	"context"
	"fmt"
	"sync"
)

func Example() {
	limiter := New(2)

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		if err := limiter.Wait(context.Background()); err != nil {
			return
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer limiter.Release()
			results[i] = i * i
		}(i)
	}
	wg.Wait()

	fmt.Println(results)
	fmt.Println("in use:", limiter.InUse())
	// Output:
	// [0 1 4 9 16]
	// in use: 0
}
