package webhooks

import (
	"database/sql"
	"testing"

	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

func seedLearner(t *testing.T, db *sql.DB, ssoRegion, ssoCountry, enterpriseCountry string) (userID, enterpriseID string, classifier *RegionClassifier) {
	t.Helper()

	users := repositories.NewUserRepository(db)
	enterprises := repositories.NewEnterpriseRepository(db)

	user := &models.User{Username: "learner", Email: "learner@example.com"}
	if err := users.Create(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if ssoRegion != "" || ssoCountry != "" {
		account := &models.SSOAccount{
			UserID:   user.ID,
			Provider: "saml",
			UID:      "learner@idp",
			Region:   ssoRegion,
			Country:  ssoCountry,
		}
		if err := users.CreateSSOAccount(account); err != nil {
			t.Fatalf("Failed to create sso account: %v", err)
		}
	}

	enterprise := &models.Enterprise{Name: "Acme", Country: enterpriseCountry}
	if err := enterprises.Create(enterprise); err != nil {
		t.Fatalf("Failed to create enterprise: %v", err)
	}

	return user.ID, enterprise.ID, NewRegionClassifier(users, enterprises)
}

func TestResolveRegion_SSOAttributeWins(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, classifier := seedLearner(t, db, "EU", "US", "US")
	if got := classifier.ResolveRegion(userID, enterpriseID); got != models.RegionEU {
		t.Errorf("Expected EU from SSO region attribute, got %s", got)
	}
}

func TestResolveRegion_SSOCountryMapping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tests := []struct {
		country  string
		expected string
	}{
		{"GB", models.RegionUK},
		{"DE", models.RegionEU},
		{"FR", models.RegionEU},
		{"US", models.RegionUS},
	}
	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			inner := setupTestDB(t)
			defer inner.Close()

			userID, enterpriseID, classifier := seedLearner(t, inner, "", tt.country, "")
			if got := classifier.ResolveRegion(userID, enterpriseID); got != tt.expected {
				t.Errorf("Country %s: expected %s, got %s", tt.country, tt.expected, got)
			}
		})
	}
}

func TestResolveRegion_EnterpriseCountryFallback(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, classifier := seedLearner(t, db, "", "", "GB")
	if got := classifier.ResolveRegion(userID, enterpriseID); got != models.RegionUK {
		t.Errorf("Expected UK from enterprise country, got %s", got)
	}
}

func TestResolveRegion_DefaultsToOther(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, classifier := seedLearner(t, db, "", "JP", "BR")
	if got := classifier.ResolveRegion(userID, enterpriseID); got != models.RegionOther {
		t.Errorf("Expected OTHER for unmapped countries, got %s", got)
	}
}

func TestResolveRegion_LookupFailureDegrades(t *testing.T) {
	db := setupTestDB(t)

	users := repositories.NewUserRepository(db)
	enterprises := repositories.NewEnterpriseRepository(db)
	classifier := NewRegionClassifier(users, enterprises)

	// Closed db makes every lookup fail; classification must not error out.
	db.Close()

	if got := classifier.ResolveRegion("usr_missing", "ent_missing"); got != models.RegionOther {
		t.Errorf("Expected OTHER on lookup failure, got %s", got)
	}
}
