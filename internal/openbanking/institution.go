package openbanking

import (
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
)

// InstitutionRegistry maps aggregation-API institution ids onto canonical tags.
//
// Ids that are not registered resolve to domain.InstitutionUnknown unless a
// fallback tag is configured, in which case they resolve to that tag. Either
// way Resolve reports them as unrecognized so callers can flag the export.
type InstitutionRegistry struct {
	known    map[string]domain.Institution
	fallback domain.Institution
}

// DefaultInstitutionIDs are the institutions the pipeline is deployed for.
var DefaultInstitutionIDs = []string{
	string(domain.InstitutionPKO),
	string(domain.InstitutionMBank),
}

// NewInstitutionRegistry builds a registry from institution ids. Each id is
// its own tag. An empty fallback keeps unrecognized ids as UNKNOWN.
func NewInstitutionRegistry(ids []string, fallback string) *InstitutionRegistry {
	r := &InstitutionRegistry{
		known:    make(map[string]domain.Institution, len(ids)),
		fallback: domain.InstitutionUnknown,
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		r.known[id] = domain.Institution(id)
	}
	if fb := strings.TrimSpace(fallback); fb != "" {
		r.fallback = domain.Institution(fb)
	}
	return r
}

// DefaultInstitutionRegistry registers PKO and mBank with no fallback.
func DefaultInstitutionRegistry() *InstitutionRegistry {
	return NewInstitutionRegistry(DefaultInstitutionIDs, "")
}

// Resolve returns the tag for id and whether id is registered.
func (r *InstitutionRegistry) Resolve(id string) (domain.Institution, bool) {
	if tag, ok := r.known[strings.TrimSpace(id)]; ok {
		return tag, true
	}
	return r.fallback, false
}
