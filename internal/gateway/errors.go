package gateway

import "errors"

// Ошибки шлюза внешнего API.
var (
	// ErrCircuitOpen — breaker разомкнут, вызов не выполнялся.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRetryExhausted — все попытки retry исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)
