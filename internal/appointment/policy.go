package appointment

import "errors"

var (
	ErrNotAllowed              = errors.New("actor is not allowed to perform this action")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

type Action string

const (
	ActionView         Action = "view"
	ActionUpdate       Action = "update"
	ActionUpdateStatus Action = "update-status"
	ActionDelete       Action = "delete"
)

// ownAppointmentsOnly says whether a role must own the appointment to perform
// an action. Roles missing from an action's row are denied outright. A single
// table instead of per-handler checks: the upstream system checked ownership
// for providers but waved patients through on general updates.
var ownAppointmentsOnly = map[Action]map[Role]bool{
	ActionView: {
		RolePatient:  true,
		RoleProvider: true,
		RoleAdmin:    false,
	},
	ActionUpdate: {
		RolePatient:  true,
		RoleProvider: true,
		RoleAdmin:    false,
	},
	ActionUpdateStatus: {
		RolePatient:  true,
		RoleProvider: true,
		RoleAdmin:    false,
	},
	ActionDelete: {
		RolePatient:  true,
		RoleProvider: true,
		RoleAdmin:    false,
	},
}

// statusTargets lists which target statuses each role may set at all.
// Patients can only cancel; providers drive the consultation lifecycle;
// admins may set anything.
var statusTargets = map[Role]map[Status]bool{
	RolePatient: {
		StatusCancelled: true,
	},
	RoleProvider: {
		StatusConfirmed: true,
		StatusCompleted: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	},
	RoleAdmin: {
		StatusPending:   true,
		StatusConfirmed: true,
		StatusCancelled: true,
		StatusCompleted: true,
		StatusNoShow:    true,
	},
}

// legalTransitions is the appointment state machine. Terminal statuses have
// no row.
var legalTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCompleted: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	},
}

// authorize checks the (role, action) policy table against the appointment's
// ownership. ownPatient/ownProvider say whether the acting patient/provider
// profile matches the appointment's references.
func authorize(role Role, action Action, ownPatient, ownProvider bool) error {
	row, ok := ownAppointmentsOnly[action]
	if !ok {
		return ErrNotAllowed
	}
	needOwn, ok := row[role]
	if !ok {
		return ErrNotAllowed
	}
	if !needOwn {
		return nil
	}

	switch role {
	case RolePatient:
		if ownPatient {
			return nil
		}
	case RoleProvider:
		if ownProvider {
			return nil
		}
	}
	return ErrNotAllowed
}

// checkTransition validates a status change against both the state machine
// and the role's allowed targets.
func checkTransition(role Role, from, to Status) error {
	if !statusTargets[role][to] {
		return ErrNotAllowed
	}
	if !legalTransitions[from][to] {
		return ErrInvalidStatusTransition
	}
	return nil
}
