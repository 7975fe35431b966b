package transport

import (
	"net/http"
	"net/url"
)

// Request is the framework-independent view of an action request.
type Request struct {
	Method string
	URL    *url.URL // absolute
	Query  url.Values
}

// Response is what an action request resolves to. Header always carries
// the action header set.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Headers configures the protocol headers sent on every action response.
type Headers struct {
	BlockchainIDs string // CAIP-2, e.g. "eip155:10143"
	Version       string // e.g. "2.0"
}

// Header returns a fresh header set for an action response.
func (h Headers) Header() http.Header {
	hdr := make(http.Header)
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type, x-blockchain-ids, x-action-version")
	hdr.Set("Content-Type", "application/json")
	hdr.Set("x-blockchain-ids", h.BlockchainIDs)
	hdr.Set("x-action-version", h.Version)
	return hdr
}

// errorBody is the action error schema.
type errorBody struct {
	Error string `json:"error"`
}

// Rules is the body of /actions.json.
type Rules struct {
	Rules []Rule `json:"rules"`
}

// Rule maps site paths to action API paths.
type Rule struct {
	PathPattern string `json:"pathPattern"`
	APIPath     string `json:"apiPath"`
}
