package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/schooltransit/backend/internal/domain"
)

func TestTripType_Valid(t *testing.T) {
	assert.True(t, domain.TripTypePickup.Valid())
	assert.True(t, domain.TripTypeDropoff.Valid())
	assert.False(t, domain.TripType("").Valid())
	assert.False(t, domain.TripType("express").Valid())
}

func TestCheckInMethod_Valid(t *testing.T) {
	assert.True(t, domain.CheckInMethodManual.Valid())
	assert.True(t, domain.CheckInMethodQR.Valid())
	assert.True(t, domain.CheckInMethodFaceID.Valid())
	assert.False(t, domain.CheckInMethod("retina").Valid())
}

func TestTrip_HasChild(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	trip := domain.Trip{ChildrenIDs: []uuid.UUID{a}}

	assert.True(t, trip.HasChild(a))
	assert.False(t, trip.HasChild(b))
}

func TestTrip_IsCheckedIn(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	trip := domain.Trip{ChildrenIDs: []uuid.UUID{a, b}, CheckedInChildren: []uuid.UUID{a}}

	assert.True(t, trip.IsCheckedIn(a))
	assert.False(t, trip.IsCheckedIn(b))
}

func TestNewHistoryParams_Defaults(t *testing.T) {
	driverID := uuid.New()

	p := domain.NewHistoryParams(driverID, 0, uuid.Nil)
	assert.Equal(t, 20, p.Limit, "zero limit falls back to default")

	p = domain.NewHistoryParams(driverID, 500, uuid.Nil)
	assert.Equal(t, 20, p.Limit, "oversized limit falls back to default")

	p = domain.NewHistoryParams(driverID, 100, uuid.Nil)
	assert.Equal(t, 100, p.Limit, "maximum limit is accepted")
}

func TestRole_IsAdmin(t *testing.T) {
	assert.True(t, domain.RoleSchoolAdmin.IsAdmin())
	assert.True(t, domain.RoleSuperAdmin.IsAdmin())
	assert.False(t, domain.RoleDriver.IsAdmin())
	assert.False(t, domain.RoleParent.IsAdmin())
}
