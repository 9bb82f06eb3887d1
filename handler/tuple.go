package handler

// Tuple is a result with an explicit status and optional header overrides.
// A zero Status means 200.
type Tuple struct {
	Body    any
	Status  int
	Headers map[string]string
}

// Pair returns a (body, status) result.
func Pair(body any, status int) Tuple {
	return Tuple{Body: body, Status: status}
}

// Triple returns a (body, status, headers) result.
func Triple(body any, status int, headers map[string]string) Tuple {
	return Tuple{Body: body, Status: status, Headers: headers}
}
