package appointment

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// MeetingProvider issues a meeting id and externally hosted join link for a
// video consultation. Injected so the generation scheme can be swapped for a
// collision-checked or gateway-issued identifier without touching booking
// logic.
type MeetingProvider interface {
	NewMeeting() (id, link string)
}

type hostedMeetings struct {
	prefix  string
	baseURL string
}

// NewHostedMeetings generates ids of the form {prefix}-{epochMillis}-{alnum9}
// and links under baseURL. No uniqueness check against existing ids; the
// timestamp plus a 9-character suffix makes collisions astronomically
// unlikely.
func NewHostedMeetings(prefix, baseURL string) MeetingProvider {
	return &hostedMeetings{
		prefix:  prefix,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

const meetingAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func (h *hostedMeetings) NewMeeting() (string, string) {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = meetingAlphabet[rand.IntN(len(meetingAlphabet))]
	}

	id := fmt.Sprintf("%s-%d-%s", h.prefix, time.Now().UnixMilli(), suffix)
	return id, h.baseURL + "/" + id
}
