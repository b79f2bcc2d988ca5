package domain

// Snapshot is everything the manager loads from its side channel at start.
type Snapshot struct {
	Companies       []Company
	Correspondences []Correspondence
	Audit           []AuditEntry
}
