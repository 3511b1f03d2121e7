package store

import (
	"time"

	"github.com/sony/gobreaker"
)

func newTestBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: time.Second,
	})
}
