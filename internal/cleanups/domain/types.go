package domain

import "math/big"

// DefaultGateway is the IPFS gateway used to build proof URLs.
const DefaultGateway = "https://ipfs.io/ipfs/"

// Cleanup is a cleanup record as served over the API.
type Cleanup struct {
	ID        *big.Int `json:"id"`
	Uploader  string   `json:"uploader"`
	ProofRef  string   `json:"proofRef"`
	ProofURL  string   `json:"proofUrl"`
	Upvotes   *big.Int `json:"upvotes"`
	Downvotes *big.Int `json:"downvotes"`
}

// UploadRequest asks for the calldata that registers a proof on chain.
type UploadRequest struct {
	ProofRef string `json:"proofRef"`
}
