// Package provider performs the single outbound delivery call per target and
// normalizes provider errors into the closed classification taxonomy.
package provider

// Response stores provider call metadata from a successful delivery.
type Response struct {
	StatusCode int
	Body       string
	MessageID  string
}
