package queue

import "errors"

var (
	// ErrQueueFull indicates an enqueue on a queue at capacity
	ErrQueueFull = errors.New("queue full")

	// ErrInsufficientCredit indicates a pipe without enough transmit credit
	ErrInsufficientCredit = errors.New("insufficient credit")
)
