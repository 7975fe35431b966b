package server

import (
	"net/http"
	"strings"

	actionsTransport "github.com/pendergraft/cleanfi/internal/actions/transport"
)

// corsMiddleware opens the JSON API to browser clients. The action routes
// carry their own header set and are not wrapped.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rejecter answers requests refused by the outer middleware. Action paths
// get the action error body and headers so wallets can render them.
func rejecter(actions *actionsTransport.Handler, status int, code, message string) func(http.ResponseWriter, *http.Request) {
	action := actions.Reject(status, message)
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, actionsPrefix+"/") {
			action(w, r)
			return
		}
		writeError(w, status, code, message)
	}
}
