package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_DescribeAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}
		if r.URL.Path != "/api/actions/vote" {
			t.Errorf("Expected path /api/actions/vote, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("cleanupId"); got != "7" {
			t.Errorf("cleanupId = %q, want 7", got)
		}
		if got := r.URL.Query().Get("type"); got != "like" {
			t.Errorf("type = %q, want like", got)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"type":  "action",
			"label": "👍 Like (0.001 MON)",
			"links": map[string]any{
				"actions": []map[string]string{
					{"type": "transaction", "label": "👍 Like (0.001 MON)", "href": "/api/actions/vote?cleanupId=7&type=like"},
				},
			},
		})
	}))
	defer server.Close()

	md, err := New(server.URL, "").DescribeAction(context.Background(), "vote", "7", "like")
	if err != nil {
		t.Fatalf("DescribeAction() error = %v", err)
	}
	if md.Label != "👍 Like (0.001 MON)" {
		t.Errorf("Label = %q", md.Label)
	}
	if len(md.Links.Actions) != 1 || md.Links.Actions[0].Href != "/api/actions/vote?cleanupId=7&type=like" {
		t.Errorf("Links = %+v", md.Links.Actions)
	}
}

func TestClient_BuildAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"type":        "transaction",
			"transaction": `{"to":"0x8170Dde13D14E93Af7EDEdcE81db35479630cB8B","value":"1000000000000000","chainId":10143,"data":"0x"}`,
			"message":     "Vote like for Cleanup #7 - 0.001 MON",
		})
	}))
	defer server.Close()

	resp, err := New(server.URL, "").BuildAction(context.Background(), "vote", "7", "like")
	if err != nil {
		t.Fatalf("BuildAction() error = %v", err)
	}
	if resp.Message != "Vote like for Cleanup #7 - 0.001 MON" {
		t.Errorf("Message = %q", resp.Message)
	}

	tx, err := resp.DecodeTransaction()
	if err != nil {
		t.Fatalf("DecodeTransaction() error = %v", err)
	}
	if tx.ChainID != 10143 || tx.Data != "0x" {
		t.Errorf("transaction = %+v", tx)
	}
	wei, err := tx.WeiValue()
	if err != nil {
		t.Fatalf("WeiValue() error = %v", err)
	}
	if wei.String() != "1000000000000000" {
		t.Errorf("WeiValue() = %s", wei)
	}
}

func TestClient_ActionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "").BuildAction(context.Background(), "vote", "", "like")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "Internal server error" || apiErr.Code != "" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClient_Preflight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			t.Errorf("Expected OPTIONS method, got %s", r.Method)
		}
		w.Header().Set("x-blockchain-ids", "eip155:10143")
		w.Header().Set("x-action-version", "2.0")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h, err := New(server.URL, "").Preflight(context.Background(), "vote")
	if err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	if h.Get("x-blockchain-ids") != "eip155:10143" || h.Get("x-action-version") != "2.0" {
		t.Errorf("headers = %v", h)
	}
}

func TestClient_GetCleanup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/cleanups/7" {
			t.Errorf("Expected path /api/v1/cleanups/7, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":7,"uploader":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","proofRef":"QmProof","proofUrl":"https://ipfs.io/ipfs/QmProof","upvotes":4,"downvotes":1}`))
	}))
	defer server.Close()

	c, err := New(server.URL, "").GetCleanup(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetCleanup() error = %v", err)
	}
	if c.ID.Int64() != 7 || c.Upvotes.Int64() != 4 || c.Downvotes.Int64() != 1 {
		t.Errorf("cleanup = %+v", c)
	}
	if c.ProofURL != "https://ipfs.io/ipfs/QmProof" {
		t.Errorf("ProofURL = %q", c.ProofURL)
	}
}

func TestClient_GetCleanup_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "Cleanup not found"},
		})
	}))
	defer server.Close()

	_, err := New(server.URL, "").GetCleanup(context.Background(), "99")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "NOT_FOUND: Cleanup not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestClient_PrepareUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/cleanups" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["proofRef"] != "QmNew" {
			t.Errorf("proofRef = %q", body["proofRef"])
		}
		w.Write([]byte(`{"to":"0x5FbDB2315678afecb367f032d93F642f64180aa3","value":"0","chainId":10143,"data":"0xabcdef"}`))
	}))
	defer server.Close()

	tx, err := New(server.URL, "").PrepareUpload(context.Background(), "QmNew")
	if err != nil {
		t.Fatalf("PrepareUpload() error = %v", err)
	}
	if tx.Data != "0xabcdef" || tx.Value != "0" {
		t.Errorf("transaction = %+v", tx)
	}
}

func TestClient_Leaderboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("limit = %q, want 3", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"rank": 1, "address": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "cleanups": 12, "votes": 30, "rewards": "25.5 MON", "rewardsWei": "25500000000000000000"},
			},
			"limit": 3,
		})
	}))
	defer server.Close()

	resp, err := New(server.URL, "").Leaderboard(context.Background(), 3)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if resp.Limit != 3 || len(resp.Data) != 1 || resp.Data[0].Rank != 1 {
		t.Errorf("Leaderboard() = %+v", resp)
	}
}

func TestClient_UpdateLeaderboardEntry_SendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("Expected PUT method, got %s", r.Method)
		}
		if r.Header.Get("X-API-Key") != "cfi_key_test" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"API key required"}}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		var upd LeaderboardUpdate
		json.Unmarshal(body, &upd)
		json.NewEncoder(w).Encode(LeaderboardEntry{
			Address:    "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			Cleanups:   upd.Cleanups,
			Votes:      upd.Votes,
			RewardsWei: upd.RewardsWei,
		})
	}))
	defer server.Close()

	upd := LeaderboardUpdate{Cleanups: 2, Votes: 5, RewardsWei: "0"}

	if _, err := New(server.URL, "").UpdateLeaderboardEntry(context.Background(), "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", upd); err == nil {
		t.Fatal("expected error without API key")
	}

	entry, err := New(server.URL, "cfi_key_test").UpdateLeaderboardEntry(context.Background(), "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", upd)
	if err != nil {
		t.Fatalf("UpdateLeaderboardEntry() error = %v", err)
	}
	if entry.Cleanups != 2 || entry.Votes != 5 {
		t.Errorf("entry = %+v", entry)
	}
}

func TestClient_WhoAmI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/whoami" {
			t.Errorf("Expected path /api/v1/auth/whoami, got %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "cfi_key_good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid API key"}}`))
			return
		}
		w.Write([]byte(`{"authenticated":true,"name":"ci"}`))
	}))
	defer server.Close()

	id, err := New(server.URL, "cfi_key_good").WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI() error = %v", err)
	}
	if !id.Authenticated || id.Name != "ci" {
		t.Errorf("WhoAmI() = %+v", id)
	}

	_, err = New(server.URL, "cfi_key_bad").WhoAmI(context.Background())
	if !IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestClient_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "").ActionRules(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
}

func TestActionPath(t *testing.T) {
	tests := []struct {
		action, id, typ string
		want            string
	}{
		{"vote", "7", "like", "/api/actions/vote?cleanupId=7&type=like"},
		{"stake", "", "dislike", "/api/actions/stake?type=dislike"},
		{"vote", "", "", "/api/actions/vote"},
	}
	for _, tt := range tests {
		if got := actionPath(tt.action, tt.id, tt.typ); got != tt.want {
			t.Errorf("actionPath(%q, %q, %q) = %q, want %q", tt.action, tt.id, tt.typ, got, tt.want)
		}
	}
}
