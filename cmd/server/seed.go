package main

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/database"
	"github.com/chargeslot/booking-backend/internal/models"
)

// demoID derives stable identifiers so dev tokens survive restarts
func demoID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://chargeslot.dev/demo/"+name))
}

// seedDemoData fills the in-memory store with one owner, one driver and two stations
func seedDemoData(store *database.MemoryStore, logger *logrus.Logger) {
	owner := models.User{ID: demoID("owner"), Email: "owner@chargeslot.dev", Role: models.RoleChargerOwner}
	driver := models.User{ID: demoID("driver"), Email: "driver@chargeslot.dev", Role: models.RoleEVOwner}
	store.AddUser(owner)
	store.AddUser(driver)

	for _, s := range []models.Station{
		{ID: demoID("station/harbour"), OwnerID: owner.ID, Name: "Harbour Fast Charger", Price: 250, IsActive: true},
		{ID: demoID("station/airport"), OwnerID: owner.ID, Name: "Airport Bay 2", Price: 400, IsActive: true},
	} {
		store.AddStation(s)
		logger.WithFields(logrus.Fields{"station_id": s.ID, "name": s.Name}).Info("Seeded demo station")
	}

	logger.WithFields(logrus.Fields{
		"owner_id":  owner.ID,
		"driver_id": driver.ID,
	}).Info("Seeded demo users")
}
