package sched_test

import (
	"context"
	"fmt"

	"github.com/apiwire/apiwire/sched"
)

func ExampleScheduler() {
	q := sched.New(sched.Config{Key: "upload", Limit: 2})

	done := make(chan string, 2)
	for _, name := range []string{"a", "b"} {
		q.Add(context.Background(), func(ctx context.Context) error {
			done <- name
			return nil
		}, 0)
	}

	got := map[string]bool{<-done: true, <-done: true}
	fmt.Println("ran a:", got["a"])
	fmt.Println("ran b:", got["b"])
	// Output:
	// ran a: true
	// ran b: true
}

func ExampleRegistry() {
	reg := sched.NewRegistry(sched.RegistryConfig{})

	q := reg.GetOrCreateQueue("render", 4)
	same := reg.GetOrCreateQueue("render", 2)

	fmt.Println("same queue:", q == same)
	fmt.Println("limit:", q.ConcurrencyLimit())
	// Output:
	// same queue: true
	// limit: 4
}
