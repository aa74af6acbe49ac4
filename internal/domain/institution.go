package domain

// Institution is the canonical tag stored in the "institution" column.
type Institution string

const (
	// InstitutionPKO is the tag for PKO Bank Polski exports.
	InstitutionPKO Institution = "PKO_BPKOPLPW"

	// InstitutionMBank is the tag for mBank retail exports.
	InstitutionMBank Institution = "MBANK_RETAIL_BREXPLPW"

	// InstitutionUnknown marks an export whose institution id is not registered.
	InstitutionUnknown Institution = "UNKNOWN"
)

// IsKnown reports whether the tag names a registered institution.
func (i Institution) IsKnown() bool {
	return i != "" && i != InstitutionUnknown
}

func (i Institution) String() string {
	return string(i)
}
