package escrow

import "context"

// AccessGrant is the handle pair returned when a fresh access list is
// created: the list being managed and the capability that grants management
// rights over it.
type AccessGrant struct {
	ListID       string
	CapabilityID string
}

// Sealed is an encrypted payload plus the single-use nonce bound to the
// encryption operation.
type Sealed struct {
	Ciphertext []byte
	Nonce      string
}

// Sealer is the encryption and access-control service boundary.
type Sealer interface {
	// CreateAccessList creates a fresh access list whose members may decrypt
	// payloads encrypted under it, and returns the managing capability.
	CreateAccessList(ctx context.Context, audience []Identity) (AccessGrant, error)
	// Encrypt encrypts data under the access list's key material.
	Encrypt(ctx context.Context, data []byte, listID string) (Sealed, error)
}

// BlobStore is the content-addressed blob store boundary. Upload returns the
// content identifier of the stored payload.
type BlobStore interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Executor is the ledger boundary. Execute returns only after the ledger
// reports durable inclusion; mere broadcast acknowledgment is not enough.
// Failures are distinguishable: a *RejectedError means nothing was submitted
// and a retry is safe, a *AmbiguousError means the transaction was submitted
// but confirmation failed or timed out, so callers must re-query ledger
// state before resubmitting.
type Executor interface {
	Execute(ctx context.Context, payload TransactionPayload) (*TransactionResult, error)
	FetchJob(ctx context.Context, jobID string) (*Job, error)
	FetchProfile(ctx context.Context, identity Identity) (*Profile, error)
}
