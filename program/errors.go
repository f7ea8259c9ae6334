package program

import "errors"

// Engine error codes. Every instruction either applies fully or fails
// with one of these and no state change.
var (
	// validation
	ErrInvalidArgs         = errors.New("invalid instruction args")
	ErrWrongSigner         = errors.New("missing or wrong signer")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSlippageExceeded    = errors.New("slippage bound exceeded")
	ErrAssetNotAllowed     = errors.New("asset not allowed")
	ErrInvalidAllowlist    = errors.New("invalid allowlist entry")
	ErrInvalidCurveType    = errors.New("invalid curve type")
	ErrInvalidCurveDelta   = errors.New("invalid curve delta")
	ErrInvalidBPValue      = errors.New("invalid basis point value")
	ErrExpired             = errors.New("pool expired")
	ErrAccountNotFound     = errors.New("account not found")
	ErrWrongOwner          = errors.New("account owned by wrong program")
	ErrWrongMint           = errors.New("mint mismatch")
	ErrWrongDerivation     = errors.New("account does not match derived address")

	// policy
	ErrPolicyRejected = errors.New("transfer policy rejected")

	// arithmetic
	ErrInvalidCurveState = errors.New("invalid curve state")
	ErrNumericOverflow   = errors.New("numeric overflow")
	ErrFeeSplitMismatch  = errors.New("fee split does not reconcile")

	// consistency, should never happen while invariants hold
	ErrStateDiverged = errors.New("sell state diverged from pool count")
)

// IsConsistency reports whether err belongs to the fatal class: the
// backend stops accepting instructions after seeing one of these.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrStateDiverged) || errors.Is(err, ErrFeeSplitMismatch)
}
