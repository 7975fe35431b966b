package domain

import "net/url"

// VoteType is the direction of a vote.
type VoteType string

// Vote types
const (
	Like    VoteType = "like"
	Dislike VoteType = "dislike"
)

// ParseVoteType maps a raw query value to a vote type. Only the exact,
// case-sensitive string "like" selects Like; everything else, including
// the empty string, is a Dislike.
func ParseVoteType(raw string) VoteType {
	if raw == string(Like) {
		return Like
	}
	return Dislike
}

// ParseStrictVoteType accepts only "like" and "dislike".
func ParseStrictVoteType(raw string) (VoteType, bool) {
	switch VoteType(raw) {
	case Like, Dislike:
		return VoteType(raw), true
	}
	return "", false
}

// IsUpvote reports whether the vote counts towards upvotes on chain.
func (v VoteType) IsUpvote() bool {
	return v == Like
}

// Label is the button text for the vote type.
func (v VoteType) Label() string {
	if v == Like {
		return "👍 Like"
	}
	return "👎 Dislike"
}

// Kind identifies which action endpoint a request was made to.
type Kind string

// Action kinds
const (
	KindVote  Kind = "vote"
	KindStake Kind = "stake"
)

// DescribeRequest carries the raw GET query values. A nil field means the
// parameter was absent from the query.
type DescribeRequest struct {
	CleanupID *string
	Type      *string

	// RequestURL is the absolute URL the request was made to; relative
	// icon paths are resolved against it.
	RequestURL *url.URL
}

// BuildRequest carries the raw POST query values.
type BuildRequest struct {
	CleanupID string
	Type      string
}

// Metadata is the GET response body of an action.
type Metadata struct {
	Type        string `json:"type"`
	Icon        string `json:"icon"`
	Label       string `json:"label"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Links       Links  `json:"links"`
}

// Links holds the follow-up actions offered by a metadata response.
type Links struct {
	Actions []LinkedAction `json:"actions"`
}

// LinkedAction is one button of an action card.
type LinkedAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

// TransactionResponse is the POST response body of an action. Transaction
// holds the serialized unsigned transaction.
type TransactionResponse struct {
	Type        string `json:"type"`
	Transaction string `json:"transaction"`
	Message     string `json:"message"`
}
