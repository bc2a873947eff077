package orders

import "strings"

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusDelivered  Status = "Delivered"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusInProgress: true},
	StatusInProgress: {StatusDelivered: true},
	StatusDelivered:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool { return s == StatusDelivered }

func (s Status) String() string { return string(s) }

// ParseStatus accepts the canonical names plus the InProgress/in_progress spellings.
func ParseStatus(v string) (Status, bool) {
	switch strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(v))) {
	case "pending":
		return StatusPending, true
	case "inprogress":
		return StatusInProgress, true
	case "delivered":
		return StatusDelivered, true
	}
	return "", false
}
