package model

// OrderCommit replaces the stored order of one group with IDs, in that order.
// Seq increases monotonically per (collection, group); stores reject a Seq older than
// the last one they applied.
type OrderCommit struct {
	Collection string   `json:"collection"`
	Group      string   `json:"group"`
	IDs        []string `json:"ids"`
	Seq        uint64   `json:"seq"`
}

// ToggleCommit sets one flag on one item.
type ToggleCommit struct {
	Collection string `json:"collection"`
	ItemID     string `json:"itemId"`
	Flag       Flag   `json:"flag"`
	Value      bool   `json:"value"`
	Seq        uint64 `json:"seq"`
}

// Ack is the collaborator's acknowledgement of a commit.
type Ack struct {
	Seq     uint64 `json:"seq"`
	Changed bool   `json:"changed"`
}

// OrderLane identifies the stream of order commits for one group.
func OrderLane(collection, group string) string {
	return "order:" + collection + "/" + group
}

// ToggleLane identifies the stream of toggle commits for one flag of one item.
func ToggleLane(collection, itemID string, flag Flag) string {
	return "flag:" + collection + "/" + itemID + "/" + string(flag)
}
