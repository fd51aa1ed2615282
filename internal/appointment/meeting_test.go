package appointment

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var meetingIDPattern = regexp.MustCompile(`^mediconnect-\d+-[a-z0-9]{9}$`)

func TestHostedMeetingsFormat(t *testing.T) {
	meetings := NewHostedMeetings("mediconnect", "https://meet.jit.si/")

	id, link := meetings.NewMeeting()
	assert.Regexp(t, meetingIDPattern, id)
	assert.Equal(t, "https://meet.jit.si/"+id, link)
	assert.False(t, strings.Contains(link, "//"+id), "trailing slash must be trimmed")
}

func TestHostedMeetingsDistinctIDs(t *testing.T) {
	meetings := NewHostedMeetings("mediconnect", "https://meet.jit.si")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _ := meetings.NewMeeting()
		assert.False(t, seen[id], "generated duplicate id %s", id)
		seen[id] = true
	}
}
