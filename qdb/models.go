package qdb

type MembershipChangeKind string

const (
	MembershipAdd    = MembershipChangeKind("ADD")
	MembershipRemove = MembershipChangeKind("REMOVE")
)

type MembershipChangeStatus string

const (
	ChangePlanned           = MembershipChangeStatus("PLANNED")
	ChangeMetadataPublished = MembershipChangeStatus("METADATA_PUBLISHED")
	ChangeDataMoved         = MembershipChangeStatus("DATA_MOVED")
	ChangeComplete          = MembershipChangeStatus("COMPLETE")
)

// MembershipChange journals one add or remove so that a restarted
// coordinator can compensate it.
type MembershipChange struct {
	ID   string               `json:"id"`
	Kind MembershipChangeKind `json:"kind"`
	// Node is the address joining or leaving the ring.
	Node string `json:"node"`
	// Peer is the ring successor taking part in the migration.
	Peer         string                 `json:"peer"`
	Range        string                 `json:"range"`
	PrevMetadata string                 `json:"prev_metadata"`
	NextMetadata string                 `json:"next_metadata"`
	Status       MembershipChangeStatus `json:"status"`
}
