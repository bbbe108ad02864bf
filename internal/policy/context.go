package policy

import (
	"strings"

	"github.com/fieldops/accessctl/models"
)

// RequestInfo carries the request-derived inputs of an evaluation.
type RequestInfo struct {
	SitecID string
	Method  string
	Path    string
}

// BuildContext returns the attribute map for an evaluation. Every key is
// always present; missing values are empty strings and the method is lower
// cased.
func BuildContext(profile *models.ActorProfile, info RequestInfo) Attributes {
	attrs := ActorFromProfile(profile).Attributes()
	attrs[AttrSitecID] = info.SitecID
	attrs[AttrMethod] = strings.ToLower(info.Method)
	attrs[AttrPath] = info.Path
	return attrs
}
