package policy

import (
	"testing"

	"github.com/fieldops/accessctl/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBuildContext(t *testing.T) {
	companyID := uuid.New()

	t.Run("full profile", func(t *testing.T) {
		profile := models.NewActorProfile("sub-1", companyID, models.RoleTechnician)
		profile.Department = "maintenance"
		profile.Location = "north"

		attrs := BuildContext(profile, RequestInfo{SitecID: "s-9", Method: "POST", Path: "/api/reports/"})

		assert.Equal(t, Attributes{
			AttrRole:       "tecnico",
			AttrDepartment: "maintenance",
			AttrLocation:   "north",
			AttrCompanyID:  companyID.String(),
			AttrSitecID:    "s-9",
			AttrMethod:     "post",
			AttrPath:       "/api/reports/",
		}, attrs)
	})

	t.Run("nil profile yields empty strings", func(t *testing.T) {
		attrs := BuildContext(nil, RequestInfo{Method: "GET"})

		assert.Len(t, attrs, 7)
		assert.Equal(t, "", attrs[AttrRole])
		assert.Equal(t, "", attrs[AttrCompanyID])
		assert.Equal(t, "", attrs[AttrSitecID])
		assert.Equal(t, "get", attrs[AttrMethod])
	})

	t.Run("suspended company is not reported", func(t *testing.T) {
		profile := models.NewActorProfile("sub-1", companyID, models.RoleProjectManager)
		profile.CompanyStatus = models.CompanyStatusSuspended

		attrs := BuildContext(profile, RequestInfo{})
		assert.Equal(t, "", attrs[AttrCompanyID])
	})
}
