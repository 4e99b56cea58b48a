package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/types"
)

// PendingTransfer is the explicit pending-value slot of a two-step role
// transfer: the proposed recipient and when the proposal was made.
type PendingTransfer struct {
	To          common.Address
	InitiatedAt time.Time
}

// Roles tracks the owner and admin of an account and any in-flight transfer
// of either role. Transfers complete only when the proposed recipient
// accepts; the incumbent can cancel at any point before that.
type Roles struct {
	Owner common.Address
	Admin common.Address

	PendingOwner *PendingTransfer
	PendingAdmin *PendingTransfer
}

// NewRoles creates the role set for a fresh account
func NewRoles(owner, admin common.Address) *Roles {
	return &Roles{Owner: owner, Admin: admin}
}

// IsOwner reports whether the caller holds the owner role
func (r *Roles) IsOwner(caller common.Address) bool { return caller == r.Owner }

// IsAdmin reports whether the caller holds the admin role
func (r *Roles) IsAdmin(caller common.Address) bool { return caller == r.Admin }

// ProposeTransfer opens a pending transfer of the given role to a recipient.
// Only the incumbent may propose; proposing again overwrites the slot.
func (r *Roles) ProposeTransfer(role types.Role, caller, to common.Address, now time.Time) error {
	if to == (common.Address{}) {
		return errors.NewZeroAddressError("recipient")
	}

	switch role {
	case types.RoleOwner:
		if !r.IsOwner(caller) {
			return errors.NewNotOwnerError(caller)
		}
		r.PendingOwner = &PendingTransfer{To: to, InitiatedAt: now}
	case types.RoleAdmin:
		if !r.IsAdmin(caller) {
			return errors.NewNotAdminError(caller)
		}
		r.PendingAdmin = &PendingTransfer{To: to, InitiatedAt: now}
	default:
		return errors.NewInvalidParameterError("role", "unknown role")
	}
	return nil
}

// AcceptTransfer completes a pending transfer. Only the proposed recipient
// may accept.
func (r *Roles) AcceptTransfer(role types.Role, caller common.Address) error {
	switch role {
	case types.RoleOwner:
		if r.PendingOwner == nil {
			return errors.NewNoPendingTransferError(role)
		}
		if caller != r.PendingOwner.To {
			return errors.NewNotPendingRecipientError(role, caller)
		}
		r.Owner = r.PendingOwner.To
		r.PendingOwner = nil
	case types.RoleAdmin:
		if r.PendingAdmin == nil {
			return errors.NewNoPendingTransferError(role)
		}
		if caller != r.PendingAdmin.To {
			return errors.NewNotPendingRecipientError(role, caller)
		}
		r.Admin = r.PendingAdmin.To
		r.PendingAdmin = nil
	default:
		return errors.NewInvalidParameterError("role", "unknown role")
	}
	return nil
}

// CancelTransfer clears a pending transfer. Only the incumbent may cancel.
func (r *Roles) CancelTransfer(role types.Role, caller common.Address) error {
	switch role {
	case types.RoleOwner:
		if !r.IsOwner(caller) {
			return errors.NewNotOwnerError(caller)
		}
		if r.PendingOwner == nil {
			return errors.NewNoPendingTransferError(role)
		}
		r.PendingOwner = nil
	case types.RoleAdmin:
		if !r.IsAdmin(caller) {
			return errors.NewNotAdminError(caller)
		}
		if r.PendingAdmin == nil {
			return errors.NewNoPendingTransferError(role)
		}
		r.PendingAdmin = nil
	default:
		return errors.NewInvalidParameterError("role", "unknown role")
	}
	return nil
}
