package escrow

// DeliverableSubmission is the immutable record built by the orchestrator
// once every pipeline step has confirmed. It is consumed exactly once by the
// milestone-submission transaction and held only transiently in memory; the
// ledger keeps the durable copy.
type DeliverableSubmission struct {
	// ContentID is the blob store address of the encrypted deliverable.
	ContentID string
	// PreviewRef is a caller-supplied locator, validated for syntax only.
	PreviewRef string
	// AccessListID identifies the access list that guards decryption.
	AccessListID string
	// CapabilityID grants management rights over the access list.
	CapabilityID string
	// Nonce is the single-use nonce bound to the encryption operation.
	Nonce string
	// Filename is the original filename. Metadata only; never trusted for
	// security decisions.
	Filename string
}
