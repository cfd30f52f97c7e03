package lettersync

import "time"

// Status is the verification state of a letter as reported by the server.
//
// The three known values are [StatusVerified], [StatusPending] and
// [StatusRejected]. Any other string is still a valid status; it is applied
// to the page and rendered with the fallback presentation.
type Status string

const (
	// StatusVerified indicates the letter passed verification.
	StatusVerified Status = "Verified"

	// StatusPending indicates the letter is awaiting verification.
	StatusPending Status = "Pending"

	// StatusRejected indicates the letter failed verification.
	StatusRejected Status = "Rejected"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Presentation is the badge styling for a status: a colour class suffix
// ("bg-<Color>") and an icon name ("bi-<Icon>").
type Presentation struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var presentations = map[Status]Presentation{
	StatusVerified: {Color: "success", Icon: "check-circle"},
	StatusPending:  {Color: "warning", Icon: "clock"},
	StatusRejected: {Color: "danger", Icon: "x-circle"},
}

// fallbackPresentation is used for statuses outside the known set.
var fallbackPresentation = Presentation{Color: "secondary", Icon: "question-circle"}

// PresentationFor returns the badge styling for s. The mapping is total:
// unknown statuses get the secondary colour and question-circle icon.
func PresentationFor(s Status) Presentation {
	if p, ok := presentations[s]; ok {
		return p
	}
	return fallbackPresentation
}

// Notification is a user-facing message emitted once per detected change.
type Notification struct {
	LetterNumber string    `json:"letter_number"`
	Status       Status    `json:"status"`
	Message      string    `json:"message"`
	Level        string    `json:"level"`
	CreatedAt    time.Time `json:"created_at"`
}

// CycleResult describes the outcome of one sync cycle.
//
// A skipped cycle issued no request because the page had no tracked keys.
// Err is the cycle failure, if any; it always wraps [ErrSyncFailed].
type CycleResult struct {
	// CycleID identifies the cycle in logs.
	CycleID string

	// Tracked is the number of letter numbers sent to the server.
	Tracked int

	// Returned is the number of (letter, status) pairs in the response.
	Returned int

	// Changed lists the letter numbers whose status changed, in apply order.
	Changed []string

	// Skipped reports that no request was issued.
	Skipped bool

	// StartedAt is when the cycle began.
	StartedAt time.Time

	// Duration is the total time the cycle took.
	Duration time.Duration

	// Err is the cycle failure, or nil.
	Err error
}
