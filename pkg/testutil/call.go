package testutil

import "time"

// Call records a ClientToHost call received by the mock host
type Call struct {
	Timestamp time.Time
	Method    string
	Args      []any
}

// FilterCalls filters calls by method
func FilterCalls(calls []Call, method string) []Call {
	var filtered []Call
	for _, call := range calls {
		if call.Method == method {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// FindCallWithArg finds the most recent call to method whose argument at
// index equals value. JSON numbers arrive as float64.
func FindCallWithArg(calls []Call, method string, index int, value any) *Call {
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if call.Method != method || index >= len(call.Args) {
			continue
		}
		if call.Args[index] == value {
			return &call
		}
	}
	return nil
}
