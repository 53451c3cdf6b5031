package dto

import "net/url"

// GatewayPingResponse reports the authorized identity on the gateway
// diagnostic endpoint.
type GatewayPingResponse struct {
	Status  string   `json:"status"`
	Subject string   `json:"sub"`
	Scopes  []string `json:"scopes"`
}

// GatewayEchoResponse is the diagnostic payload served when no upstream
// is configured and the echo fallback is explicitly enabled. Echo is
// always true so the payload can never be mistaken for an upstream
// response.
type GatewayEchoResponse struct {
	Echo    bool       `json:"echo"`
	Message string     `json:"message"`
	Subject string     `json:"subject"`
	Scopes  []string   `json:"scopes"`
	Method  string     `json:"method"`
	Path    string     `json:"path"`
	Query   url.Values `json:"query"`
	Body    string     `json:"body,omitempty"`
}
