package domain

// Limits for List
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Entry is a ranked leaderboard row.
type Entry struct {
	Rank       int    `json:"rank,omitempty"`
	Address    string `json:"address"`
	Cleanups   int64  `json:"cleanups"`
	Votes      int64  `json:"votes"`
	Rewards    string `json:"rewards"`    // e.g. "25.5 MON"
	RewardsWei string `json:"rewardsWei"` // decimal wei
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// UpdateRequest replaces a contributor's totals.
type UpdateRequest struct {
	Cleanups   int64  `json:"cleanups" yaml:"cleanups"`
	Votes      int64  `json:"votes" yaml:"votes"`
	RewardsWei string `json:"rewardsWei" yaml:"rewardsWei"`
}

// ImportEntry is one row of a leaderboard import file. Rewards may be
// given either in wei or in native units ("25.5").
type ImportEntry struct {
	Address    string `yaml:"address"`
	Cleanups   int64  `yaml:"cleanups"`
	Votes      int64  `yaml:"votes"`
	Rewards    string `yaml:"rewards,omitempty"`
	RewardsWei string `yaml:"rewardsWei,omitempty"`
}
