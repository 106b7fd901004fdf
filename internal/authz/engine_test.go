package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/pkg/apperror"
	"github.com/practicedesk/booking-api/pkg/metrics"
)

func principal(role model.Role, orgID uuid.UUID) *model.Principal {
	user := &model.User{
		OrganizationID: orgID,
		Role:           role,
		Status:         model.UserStatusActive,
	}
	user.ID = uuid.New()
	org := &model.Organization{Active: true}
	org.ID = orgID
	return &model.Principal{User: user, Organization: org}
}

func TestHasCapability(t *testing.T) {
	tests := []struct {
		name    string
		role    model.Role
		action  Action
		allowed bool
	}{
		{"admin can update users", model.RoleAdmin, ActionUsersUpdate, true},
		{"admin can execute", model.RoleAdmin, ActionApptExecute, true},
		{"professional can execute", model.RoleProfessional, ActionApptExecute, true},
		{"professional cannot update users", model.RoleProfessional, ActionUsersUpdate, false},
		{"professional cannot update organization", model.RoleProfessional, ActionOrgUpdate, false},
		{"staff cannot execute", model.RoleStaff, ActionApptExecute, false},
		{"staff can pre-confirm", model.RoleStaff, ActionApptPreConf, true},
		{"client cannot pre-confirm", model.RoleClient, ActionApptPreConf, false},
		{"client can confirm", model.RoleClient, ActionApptConfirm, true},
		{"client can view users", model.RoleClient, ActionUsersView, true},
		{"client cannot update users", model.RoleClient, ActionUsersUpdate, false},
		{"unknown role denies", model.Role("superuser"), ActionApptView, false},
		{"unknown action denies", model.RoleAdmin, Action("appointments.teleport"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, HasCapability(tt.role, tt.action))
		})
	}
}

func TestCanTenantGate(t *testing.T) {
	engine := NewEngine(nil)
	orgA := uuid.New()
	orgB := uuid.New()

	appt := &model.Appointment{
		OrganizationID: orgB,
		ProfessionalID: uuid.New(),
		ClientID:       uuid.New(),
	}
	appt.ID = uuid.New()

	// Even an admin never crosses the tenant boundary.
	admin := principal(model.RoleAdmin, orgA)
	err := engine.Can(admin, ActionApptView, appt)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	sameTenantAdmin := principal(model.RoleAdmin, orgB)
	assert.NoError(t, engine.Can(sameTenantAdmin, ActionApptView, appt))
}

func TestCanRecordPolicy(t *testing.T) {
	engine := NewEngine(nil)
	orgID := uuid.New()

	professional := principal(model.RoleProfessional, orgID)
	client := principal(model.RoleClient, orgID)
	staff := principal(model.RoleStaff, orgID)

	assigned := &model.Appointment{
		OrganizationID: orgID,
		ProfessionalID: professional.UserID(),
		ClientID:       client.UserID(),
	}
	assigned.ID = uuid.New()

	other := &model.Appointment{
		OrganizationID: orgID,
		ProfessionalID: uuid.New(),
		ClientID:       uuid.New(),
	}
	other.ID = uuid.New()

	assert.NoError(t, engine.Can(professional, ActionApptView, assigned))
	assert.Error(t, engine.Can(professional, ActionApptView, other))

	assert.NoError(t, engine.Can(client, ActionApptView, assigned))
	assert.Error(t, engine.Can(client, ActionApptView, other))

	// Staff see everything in the tenant.
	assert.NoError(t, engine.Can(staff, ActionApptView, assigned))
	assert.NoError(t, engine.Can(staff, ActionApptView, other))
}

func TestCanUserPolicy(t *testing.T) {
	engine := NewEngine(nil)
	orgID := uuid.New()

	staff := principal(model.RoleStaff, orgID)

	colleague := &model.User{OrganizationID: orgID, Role: model.RoleProfessional}
	colleague.ID = uuid.New()

	assert.NoError(t, engine.Can(staff, ActionUsersView, colleague))

	// Mutation of another user requires the users.update capability,
	// which staff do not hold.
	err := engine.Can(staff, ActionUsersUpdate, colleague)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	admin := principal(model.RoleAdmin, orgID)
	assert.NoError(t, engine.Can(admin, ActionUsersUpdate, colleague))

	// A client reads their own record and nothing else. The same pair of
	// gates that narrows the listing scope must admit the self record.
	client := principal(model.RoleClient, orgID)
	self := &model.User{OrganizationID: orgID, Role: model.RoleClient}
	self.ID = client.UserID()
	assert.NoError(t, engine.Can(client, ActionUsersView, self))
	assert.Error(t, engine.Can(client, ActionUsersView, colleague))
	assert.Error(t, engine.Can(client, ActionUsersUpdate, self))
}

var decisionMetrics = metrics.New("authz_test")

func TestCanCountsDecisions(t *testing.T) {
	engine := NewEngine(decisionMetrics)
	orgID := uuid.New()

	admin := principal(model.RoleAdmin, orgID)
	appt := &model.Appointment{
		OrganizationID: orgID,
		ProfessionalID: uuid.New(),
		ClientID:       uuid.New(),
	}
	appt.ID = uuid.New()

	require.NoError(t, engine.Can(admin, ActionApptView, appt))
	require.Error(t, engine.Can(principal(model.RoleClient, orgID), ActionUsersUpdate, appt))
	require.Error(t, engine.CanAct(principal(model.RoleStaff, orgID), ActionApptExecute))

	allowed := testutil.ToFloat64(decisionMetrics.AuthzDecisions.WithLabelValues(string(ActionApptView), "allow"))
	assert.Equal(t, 1.0, allowed)
	denied := testutil.ToFloat64(decisionMetrics.AuthzDecisions.WithLabelValues(string(ActionUsersUpdate), "deny"))
	assert.Equal(t, 1.0, denied)
	coarse := testutil.ToFloat64(decisionMetrics.AuthzDecisions.WithLabelValues(string(ActionApptExecute), "deny"))
	assert.Equal(t, 1.0, coarse)
}

func TestScopeFor(t *testing.T) {
	engine := NewEngine(nil)
	orgID := uuid.New()

	t.Run("admin scope pins organization only", func(t *testing.T) {
		scope, err := engine.ScopeFor(principal(model.RoleAdmin, orgID), KindAppointment)
		require.NoError(t, err)
		assert.Equal(t, orgID, scope.OrganizationID)
		assert.Nil(t, scope.ProfessionalID)
		assert.Nil(t, scope.OwnerID)
	})

	t.Run("professional scope narrows to own calendar", func(t *testing.T) {
		p := principal(model.RoleProfessional, orgID)
		scope, err := engine.ScopeFor(p, KindAppointment)
		require.NoError(t, err)
		assert.Equal(t, orgID, scope.OrganizationID)
		require.NotNil(t, scope.ProfessionalID)
		assert.Equal(t, p.UserID(), *scope.ProfessionalID)
	})

	t.Run("client scope narrows to own records", func(t *testing.T) {
		p := principal(model.RoleClient, orgID)
		scope, err := engine.ScopeFor(p, KindAppointment)
		require.NoError(t, err)
		require.NotNil(t, scope.OwnerID)
		assert.Equal(t, p.UserID(), *scope.OwnerID)
	})

	t.Run("client user listing is self only", func(t *testing.T) {
		p := principal(model.RoleClient, orgID)
		scope, err := engine.ScopeFor(p, KindUser)
		require.NoError(t, err)
		require.NotNil(t, scope.OwnerID)
		assert.Equal(t, p.UserID(), *scope.OwnerID)
	})

	t.Run("unknown kind denies", func(t *testing.T) {
		_, err := engine.ScopeFor(principal(model.RoleAdmin, orgID), Kind("invoice"))
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})
}
