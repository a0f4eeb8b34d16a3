package ping

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingboard/backend/internal/domain/enrollment"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/domain/study"
)

func testDelivery(t *testing.T, message string, url, urlText *string) Delivery {
	t.Helper()

	st, err := study.NewStudy("Sleep Study", "sleep-2025", "Contact us at lab@example.com")
	require.NoError(t, err)

	enr, err := enrollment.NewEnrollment(st.ID, "p042", "UTC", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	tmpl := &Template{
		BaseEntity: shared.NewBaseEntity(),
		StudyID:    st.ID,
		Name:       "Daily survey",
		Message:    message,
		URL:        url,
		URLText:    urlText,
	}

	p, err := NewPing(tmpl, enr.ID, time.Date(2025, 5, 1, 14, 30, 0, 0, time.UTC), 0)
	require.NoError(t, err)

	return Delivery{Ping: *p, Template: *tmpl, Enrollment: *enr, Study: *st}
}

func TestForwardURL(t *testing.T) {
	p := Ping{BaseEntity: shared.BaseEntity{ID: uuid.New()}, ForwardingCode: "abc123"}

	got := ForwardURL("https://pings.example.com/", p)
	assert.Equal(t, fmt.Sprintf("https://pings.example.com/ping/%s?code=abc123", p.ID), got)
}

func TestRenderMessage(t *testing.T) {
	url := "https://survey.example.com?pid=<PID>"
	label := "Take it now"
	d := testDelivery(t, "Hi <PID>, time for <STUDY_PUBLIC_NAME> on day <DAY_NUM>!", &url, &label)

	msg := RenderMessage(d, "https://pings.example.com")

	assert.Contains(t, msg, "Hi p042, time for Sleep Study on day 0!")
	forward := ForwardURL("https://pings.example.com", d.Ping)
	assert.Contains(t, msg, fmt.Sprintf("<a href=%q>Take it now</a>", forward))
	assert.NotContains(t, msg, "<PID>")
}

func TestRenderMessage_NoURL(t *testing.T) {
	d := testDelivery(t, "Just checking in, <PID>.", nil, nil)

	msg := RenderMessage(d, "https://pings.example.com")
	assert.Equal(t, "Just checking in, p042.", msg)
	assert.NotContains(t, msg, "<a href")
}

func TestRenderMessage_DefaultLabel(t *testing.T) {
	url := "https://survey.example.com"
	d := testDelivery(t, "Ping!", &url, nil)

	msg := RenderMessage(d, "https://pings.example.com")
	assert.Contains(t, msg, ">"+DefaultURLLabel+"<")
}

func TestRenderTargetURL(t *testing.T) {
	url := "https://survey.example.com?pid=<PID>&ping=<PING_ID>"
	d := testDelivery(t, "Ping!", &url, nil)

	target := RenderTargetURL(d)
	require.NotNil(t, target)
	assert.Equal(t, fmt.Sprintf("https://survey.example.com?pid=p042&ping=%s", d.Ping.ID), *target)
}

func TestRenderTargetURL_NoURL(t *testing.T) {
	d := testDelivery(t, "Ping!", nil, nil)
	assert.Nil(t, RenderTargetURL(d))
}

func TestBuildVariables_Timestamps(t *testing.T) {
	d := testDelivery(t, "Ping!", nil, nil)
	reminder := d.Ping.ScheduledTS.Add(time.Hour)
	expire := d.Ping.ScheduledTS.Add(4 * time.Hour)
	d.Ping.ReminderTS = &reminder
	d.Ping.ExpireTS = &expire

	vars := BuildVariables(d, "")
	assert.Equal(t, "May 1, 2025 2:30 PM", vars["<SCHEDULED_TIME>"])
	assert.Equal(t, "May 1, 2025 3:30 PM", vars["<REMINDER_TIME>"])
	assert.Equal(t, "May 1, 2025 6:30 PM", vars["<EXPIRE_TIME>"])
	assert.Equal(t, "0%", vars["<PR_COMPLETED>"])
}

func TestVariables_RenderLeavesUnknownTagsAlone(t *testing.T) {
	v := Variables{"<PID>": "p042"}
	out := v.Render("pid=<PID> other=<UNKNOWN>")
	assert.True(t, strings.Contains(out, "pid=p042"))
	assert.True(t, strings.Contains(out, "other=<UNKNOWN>"))
}
