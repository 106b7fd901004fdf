package authz

import (
	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/pkg/apperror"
	"github.com/practicedesk/booking-api/pkg/metrics"
)

// Kind enumerates the resource kinds the engine knows how to police.
type Kind string

const (
	KindAppointment  Kind = "appointment"
	KindUser         Kind = "user"
	KindOrganization Kind = "organization"
)

// Resource is any tenant-scoped record. The tenant gate works purely on
// this structural property; no per-type special casing.
type Resource interface {
	TenantID() uuid.UUID
}

// Owned is implemented by resources with a single owning user. Ownership
// is identified structurally, never by resource name.
type Owned interface {
	OwnerID() uuid.UUID
}

// policyFunc is the fine gate for one resource kind: does this specific
// record qualify for this principal and action. The tenant gate has
// already passed when a policyFunc runs.
type policyFunc func(p *model.Principal, action Action, res Resource) bool

// Engine decides allow/deny per resource and narrows list queries to the
// visible subset. The policy table is fixed at construction; resource
// kinds map to their policies at compile time.
type Engine struct {
	policies map[Kind]policyFunc
	metrics  *metrics.Metrics
}

// NewEngine builds the engine. A nil metrics handle disables decision
// counting without changing any decision.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{
		policies: map[Kind]policyFunc{
			KindAppointment:  appointmentPolicy,
			KindUser:         userPolicy,
			KindOrganization: organizationPolicy,
		},
		metrics: m,
	}
}

func (e *Engine) record(action Action, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.AuthzDecisions.WithLabelValues(string(action), outcome).Inc()
}

// kindOf maps a concrete record type to its resource kind.
func kindOf(res Resource) (Kind, bool) {
	switch res.(type) {
	case *model.Appointment:
		return KindAppointment, true
	case *model.User:
		return KindUser, true
	case *model.Organization:
		return KindOrganization, true
	}
	return "", false
}

// canAct is the coarse gate without decision counting; the exported
// entry points record exactly one decision per call.
func (e *Engine) canAct(p *model.Principal, action Action) error {
	if !HasCapability(p.Role(), action) {
		return apperror.Forbidden("role is not permitted to " + string(action))
	}
	return nil
}

// CanAct is the coarse gate alone, for operations with no target record
// yet (creates, list entry points).
func (e *Engine) CanAct(p *model.Principal, action Action) error {
	if err := e.canAct(p, action); err != nil {
		e.record(action, "deny")
		return err
	}
	e.record(action, "allow")
	return nil
}

// Can decides whether principal p may perform action on res. Layer one
// is the role-capability lookup, layer two the record policy. The tenant
// gate sits between them and applies to every role, admin included.
func (e *Engine) Can(p *model.Principal, action Action, res Resource) error {
	if err := e.canAct(p, action); err != nil {
		e.record(action, "deny")
		return err
	}

	if res.TenantID() != p.OrganizationID() {
		e.record(action, "deny")
		return apperror.Forbidden("record belongs to another organization")
	}

	kind, ok := kindOf(res)
	if !ok {
		e.record(action, "deny")
		return apperror.Forbidden("unknown resource kind")
	}

	if !e.policies[kind](p, action, res) {
		e.record(action, "deny")
		return apperror.Forbidden("not permitted for this record")
	}

	e.record(action, "allow")
	return nil
}

// Scope describes the visible subset of a resource kind for a principal.
// OrganizationID is always set; listings must never cross it.
type Scope struct {
	OrganizationID uuid.UUID
	ProfessionalID *uuid.UUID
	OwnerID        *uuid.UUID
}

// ScopeFor narrows list queries before any per-record policy runs. Even
// admins are pinned to their own organization.
func (e *Engine) ScopeFor(p *model.Principal, kind Kind) (Scope, error) {
	scope := Scope{OrganizationID: p.OrganizationID()}

	switch kind {
	case KindAppointment:
		if err := e.canAct(p, ActionApptView); err != nil {
			return Scope{}, err
		}
		switch p.Role() {
		case model.RoleProfessional:
			id := p.UserID()
			scope.ProfessionalID = &id
		case model.RoleClient:
			id := p.UserID()
			scope.OwnerID = &id
		}
	case KindUser:
		if err := e.canAct(p, ActionUsersView); err != nil {
			return Scope{}, err
		}
		if p.Role() == model.RoleClient {
			id := p.UserID()
			scope.OwnerID = &id
		}
	case KindOrganization:
		if err := e.canAct(p, ActionOrgView); err != nil {
			return Scope{}, err
		}
	default:
		return Scope{}, apperror.Forbidden("unknown resource kind")
	}

	return scope, nil
}

func appointmentPolicy(p *model.Principal, action Action, res Resource) bool {
	appt := res.(*model.Appointment)
	switch p.Role() {
	case model.RoleAdmin, model.RoleStaff:
		return true
	case model.RoleProfessional:
		return appt.ProfessionalID == p.UserID()
	case model.RoleClient:
		return appt.OwnerID() == p.UserID()
	}
	return false
}

func userPolicy(p *model.Principal, action Action, res Resource) bool {
	user := res.(*model.User)
	switch p.Role() {
	case model.RoleAdmin:
		return true
	case model.RoleStaff, model.RoleProfessional:
		// Read access across the tenant; these roles hold no user
		// mutation capability, so the coarse gate already denied writes.
		return action == ActionUsersView
	case model.RoleClient:
		return user.OwnerID() == p.UserID()
	}
	return false
}

func organizationPolicy(p *model.Principal, action Action, res Resource) bool {
	// The tenant gate has already matched the organization; the coarse
	// capability gate decides view versus update.
	return true
}

// IsAssignedProfessional reports the professional-to-appointment
// relationship used by transition gates.
func IsAssignedProfessional(p *model.Principal, appt *model.Appointment) bool {
	return p.Role() == model.RoleProfessional && appt.ProfessionalID == p.UserID()
}

// IsOwningClient reports the client-ownership relationship used by
// transition gates.
func IsOwningClient(p *model.Principal, appt *model.Appointment) bool {
	return p.Role() == model.RoleClient && appt.OwnerID() == p.UserID()
}
