package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/chargeslot/booking-backend/internal/models"
)

func TestRoleGate_Authorize(t *testing.T) {
	gate := NewRoleGate()
	driver := models.Actor{ID: uuid.New(), Role: models.RoleEVOwner}
	owner := models.Actor{ID: uuid.New(), Role: models.RoleChargerOwner}
	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}
	stranger := models.Actor{ID: uuid.New(), Role: models.RoleChargerOwner}

	booking := OwnerHint{UserID: driver.ID, StationOwnerID: owner.ID}

	tests := []struct {
		name   string
		actor  models.Actor
		action Action
		hint   OwnerHint
		want   bool
	}{
		{"driver creates", driver, ActionCreateBooking, OwnerHint{}, true},
		{"owner cannot create", owner, ActionCreateBooking, OwnerHint{}, false},
		{"admin creates", admin, ActionCreateBooking, OwnerHint{}, true},
		{"driver lists own", driver, ActionReadOwnBookings, OwnerHint{}, true},
		{"driver cannot list all", driver, ActionReadAllBookings, OwnerHint{}, false},
		{"owner lists all of own stations", owner, ActionReadAllBookings, OwnerHint{StationOwnerID: owner.ID}, true},
		{"owner cannot list foreign station", owner, ActionReadAllBookings, OwnerHint{StationOwnerID: uuid.New()}, false},
		{"driver reads own booking", driver, ActionReadBooking, booking, true},
		{"owner reads booking of station", owner, ActionReadBooking, booking, true},
		{"stranger cannot read booking", stranger, ActionReadBooking, booking, false},
		{"driver pays", driver, ActionPay, booking, true},
		{"owner cannot pay", owner, ActionPay, booking, false},
		{"driver confirms", driver, ActionConfirm, booking, true},
		{"driver cancels", driver, ActionCancel, booking, true},
		{"owner completes", owner, ActionComplete, booking, true},
		{"driver cannot complete", driver, ActionComplete, booking, false},
		{"stranger cannot complete", stranger, ActionComplete, booking, false},
		{"anyone reads payments", driver, ActionReadPayments, OwnerHint{}, true},
		{"driver cannot read summaries", driver, ActionReadStationSummary, OwnerHint{}, false},
		{"owner reads summaries", owner, ActionReadStationSummary, OwnerHint{StationOwnerID: owner.ID}, true},
		{"admin does anything", admin, ActionComplete, booking, true},
		{"nil actor", models.Actor{Role: models.RoleAdmin}, ActionReadPayments, OwnerHint{}, false},
		{"unknown role", models.Actor{ID: uuid.New(), Role: "bus_owner"}, ActionReadPayments, OwnerHint{}, false},
		{"unknown action", driver, Action("Teleport"), booking, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Authorize(tt.actor, tt.action, tt.hint))
		})
	}
}

func TestRoleGate_Scopes(t *testing.T) {
	gate := NewRoleGate()
	driver := models.Actor{ID: uuid.New(), Role: models.RoleEVOwner}
	owner := models.Actor{ID: uuid.New(), Role: models.RoleChargerOwner}
	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}

	scope := gate.BookingScope(driver)
	if assert.NotNil(t, scope.UserID) {
		assert.Equal(t, driver.ID, *scope.UserID)
	}
	assert.Nil(t, scope.StationOwnerID)

	scope = gate.BookingScope(owner)
	if assert.NotNil(t, scope.StationOwnerID) {
		assert.Equal(t, owner.ID, *scope.StationOwnerID)
	}
	assert.Nil(t, scope.UserID)

	assert.Equal(t, models.BookingFilter{}, gate.BookingScope(admin))
	assert.Equal(t, models.PaymentFilter{}, gate.PaymentScope(admin))

	payments := gate.PaymentScope(owner)
	if assert.NotNil(t, payments.StationOwnerID) {
		assert.Equal(t, owner.ID, *payments.StationOwnerID)
	}
}
