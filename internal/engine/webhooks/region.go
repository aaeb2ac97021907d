package webhooks

import (
	"strings"

	"github.com/rs/zerolog/log"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

// countryRegions maps ISO 3166-1 alpha-2 country codes to delivery regions.
var countryRegions = map[string]string{
	"US": models.RegionUS,
	"GB": models.RegionUK,

	// EU member states.
	"AT": models.RegionEU, "BE": models.RegionEU, "BG": models.RegionEU,
	"HR": models.RegionEU, "CY": models.RegionEU, "CZ": models.RegionEU,
	"DK": models.RegionEU, "EE": models.RegionEU, "FI": models.RegionEU,
	"FR": models.RegionEU, "DE": models.RegionEU, "GR": models.RegionEU,
	"HU": models.RegionEU, "IE": models.RegionEU, "IT": models.RegionEU,
	"LV": models.RegionEU, "LT": models.RegionEU, "LU": models.RegionEU,
	"MT": models.RegionEU, "NL": models.RegionEU, "PL": models.RegionEU,
	"PT": models.RegionEU, "RO": models.RegionEU, "SK": models.RegionEU,
	"SI": models.RegionEU, "ES": models.RegionEU, "SE": models.RegionEU,
}

type RegionClassifier struct {
	users       *repositories.UserRepository
	enterprises *repositories.EnterpriseRepository
}

func NewRegionClassifier(users *repositories.UserRepository, enterprises *repositories.EnterpriseRepository) *RegionClassifier {
	return &RegionClassifier{users: users, enterprises: enterprises}
}

// ResolveRegion classifies a learner for routing. Priority: explicit SSO
// region attribute, then SSO country, then the enterprise's country, then
// OTHER. It never fails; lookup errors degrade to OTHER with a warning.
func (c *RegionClassifier) ResolveRegion(userID, enterpriseID string) string {
	accounts, err := c.users.SSOAccountsForUser(userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Region lookup failed, defaulting to OTHER")
		return models.RegionOther
	}

	for _, account := range accounts {
		if region := normalizeRegion(account.Region); region != "" {
			return region
		}
	}
	for _, account := range accounts {
		if region, ok := countryRegions[strings.ToUpper(account.Country)]; ok {
			return region
		}
	}

	enterprise, err := c.enterprises.GetByID(enterpriseID)
	if err != nil {
		log.Warn().Err(err).Str("enterprise_id", enterpriseID).Msg("Region lookup failed, defaulting to OTHER")
		return models.RegionOther
	}
	if region, ok := countryRegions[strings.ToUpper(enterprise.Country)]; ok {
		return region
	}

	return models.RegionOther
}

func normalizeRegion(value string) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case models.RegionUS:
		return models.RegionUS
	case models.RegionEU:
		return models.RegionEU
	case models.RegionUK:
		return models.RegionUK
	case models.RegionOther:
		return models.RegionOther
	}
	return ""
}
