package metrics

import (
	"strconv"
	"time"
)

// ActionRequest records an action request by verb and response status.
func ActionRequest(action, method string, status int) {
	if !enabled {
		return
	}
	actionRequestsTotal.WithLabelValues(action, method, strconv.Itoa(status)).Inc()
}

// TransactionBuilt records an unsigned transaction handed to a wallet.
func TransactionBuilt(action string, chainID int64) {
	if !enabled {
		return
	}
	transactionsBuilt.WithLabelValues(action, strconv.FormatInt(chainID, 10)).Inc()
}

// CleanupLookup records a cleanup lookup: "hit", "miss", "not_found" or "error".
func CleanupLookup(result string) {
	if !enabled {
		return
	}
	cleanupLookupTotal.WithLabelValues(result).Inc()
}

// ObserveRPC records how long a JSON-RPC call took.
func ObserveRPC(method string, start time.Time) {
	if !enabled {
		return
	}
	rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// LeaderboardUpdate records a leaderboard upsert.
func LeaderboardUpdate(status string) {
	if !enabled {
		return
	}
	leaderboardUpdateTotal.WithLabelValues(status).Inc()
}
