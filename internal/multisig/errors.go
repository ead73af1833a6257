package multisig

import "errors"

// Configuration errors, returned by Initialize and owner-set changes.
var (
	ErrTooManyOwners          = errors.New("number of owners exceeds the limit for this category")
	ErrDuplicateOwners        = errors.New("owners must be unique")
	ErrThresholdTooLow        = errors.New("threshold must be at least 2")
	ErrThresholdExceedsOwners = errors.New("threshold cannot exceed the number of owners")
	ErrInvalidCategory        = errors.New("unknown wallet category")
	ErrOwnerAlreadyExists     = errors.New("owner already exists in the wallet")
	ErrSignatoryNotFound      = errors.New("signatory not found")
	ErrQuorumWouldBreak       = errors.New("removing the owner would leave fewer owners than the threshold")
	ErrWalletExists           = errors.New("wallet already exists for this creator and nonce")
	ErrInvalidOwner           = errors.New("owner address must not be zero")
	ErrInvalidDestination     = errors.New("destination address must not be zero")
)

// Authorization errors.
var (
	ErrNotAnOwner  = errors.New("caller is not an owner of the wallet")
	ErrNotProposer = errors.New("caller did not create the proposal")
	ErrNotCreator  = errors.New("caller did not create the wallet")
)

// State errors.
var (
	ErrWalletNotFound             = errors.New("wallet not found")
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrTransactionAlreadyExecuted = errors.New("transaction already executed")
	ErrAlreadyApproved            = errors.New("owner has already approved this transaction")
	ErrThresholdNotMet            = errors.New("threshold not met for execution")
	ErrRecipientMismatch          = errors.New("recipient does not match the proposal destination")
)

// Resource errors.
var (
	ErrInsufficientBalance = errors.New("insufficient balance in the wallet")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
)

// ErrorKind groups errors by how a caller should react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindConfiguration
	KindAuthorization
	KindNotFound
	KindState
	KindResource
)

var kinds = map[error]ErrorKind{
	ErrTooManyOwners:              KindConfiguration,
	ErrDuplicateOwners:            KindConfiguration,
	ErrThresholdTooLow:            KindConfiguration,
	ErrThresholdExceedsOwners:     KindConfiguration,
	ErrInvalidCategory:            KindConfiguration,
	ErrOwnerAlreadyExists:         KindConfiguration,
	ErrQuorumWouldBreak:           KindConfiguration,
	ErrInvalidOwner:               KindConfiguration,
	ErrInvalidDestination:         KindConfiguration,
	ErrWalletExists:               KindState,
	ErrNotAnOwner:                 KindAuthorization,
	ErrNotProposer:                KindAuthorization,
	ErrNotCreator:                 KindAuthorization,
	ErrWalletNotFound:             KindNotFound,
	ErrTransactionNotFound:        KindNotFound,
	ErrSignatoryNotFound:          KindNotFound,
	ErrTransactionAlreadyExecuted: KindState,
	ErrAlreadyApproved:            KindState,
	ErrThresholdNotMet:            KindState,
	ErrRecipientMismatch:          KindState,
	ErrInsufficientBalance:        KindResource,
	ErrInvalidAmount:              KindResource,
}

// Kind classifies err. Errors that are not part of the taxonomy, such as
// storage or ledger failures, are KindInternal.
func Kind(err error) ErrorKind {
	for target, kind := range kinds {
		if errors.Is(err, target) {
			return kind
		}
	}
	return KindInternal
}
