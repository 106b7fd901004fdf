package authz

import "github.com/practicedesk/booking-api/internal/model"

// Action is a named capability granted wholesale to a role.
type Action string

const (
	ActionUsersView    Action = "users.view"
	ActionUsersUpdate  Action = "users.update"
	ActionOrgView      Action = "organization.view"
	ActionOrgUpdate    Action = "organization.update"
	ActionApptView     Action = "appointments.view"
	ActionApptCreate   Action = "appointments.create"
	ActionApptPreConf  Action = "appointments.pre_confirm"
	ActionApptConfirm  Action = "appointments.confirm"
	ActionApptExecute  Action = "appointments.execute"
	ActionApptCancel   Action = "appointments.cancel"
)

// roleCapabilities is the static role -> capability mapping. Anything
// not listed here is denied; there is no other grant path.
var roleCapabilities = map[model.Role]map[Action]struct{}{
	model.RoleAdmin: capSet(
		ActionUsersView, ActionUsersUpdate,
		ActionOrgView, ActionOrgUpdate,
		ActionApptView, ActionApptCreate, ActionApptPreConf,
		ActionApptConfirm, ActionApptExecute, ActionApptCancel,
	),
	model.RoleProfessional: capSet(
		ActionUsersView, ActionOrgView,
		ActionApptView, ActionApptCreate, ActionApptPreConf,
		ActionApptConfirm, ActionApptExecute, ActionApptCancel,
	),
	model.RoleStaff: capSet(
		ActionUsersView, ActionOrgView,
		ActionApptView, ActionApptCreate, ActionApptPreConf,
		ActionApptConfirm, ActionApptCancel,
	),
	// Clients hold users.view so they can read their own account; the
	// record policy narrows it to self.
	model.RoleClient: capSet(
		ActionUsersView, ActionOrgView,
		ActionApptView, ActionApptCreate, ActionApptConfirm, ActionApptCancel,
	),
}

func capSet(actions ...Action) map[Action]struct{} {
	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// HasCapability is the coarse gate: does this role ever get to perform
// this action type. Unknown roles and unknown actions deny.
func HasCapability(role model.Role, action Action) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	_, ok = caps[action]
	return ok
}
