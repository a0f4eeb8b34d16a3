package ping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pingboard/backend/internal/domain/enrollment"
	"github.com/pingboard/backend/internal/domain/study"
)

// DefaultURLLabel is the link text used when a template has a URL but no label
const DefaultURLLabel = "Click here to take the survey"

// timeLayout is how timestamps render inside outgoing messages
const timeLayout = "Jan 2, 2006 3:04 PM"

// Delivery bundles everything needed to render and send one ping
type Delivery struct {
	Ping       Ping
	Template   Template
	Enrollment enrollment.Enrollment
	Study      study.Study
}

// Variables holds the values substituted into template text. Placeholder
// names follow the angle-bracket convention researchers use in templates.
type Variables map[string]string

// BuildVariables collects substitution values for a delivery. Timestamps
// render in the participant's timezone; a broken timezone falls back to UTC
// rather than blocking delivery.
func BuildVariables(d Delivery, forwardURL string) Variables {
	loc, err := d.Enrollment.Location()
	if err != nil {
		loc = time.UTC
	}

	v := Variables{
		"<PING_ID>":                d.Ping.ID.String(),
		"<SCHEDULED_TIME>":         d.Ping.ScheduledTS.In(loc).Format(timeLayout),
		"<DAY_NUM>":                strconv.Itoa(d.Ping.DayNum),
		"<PING_TEMPLATE_ID>":       d.Template.ID.String(),
		"<PING_TEMPLATE_NAME>":     d.Template.Name,
		"<STUDY_ID>":               d.Study.ID.String(),
		"<STUDY_PUBLIC_NAME>":      d.Study.PublicName,
		"<STUDY_INTERNAL_NAME>":    d.Study.InternalName,
		"<STUDY_CONTACT_MSG>":      d.Study.ContactMessage,
		"<PID>":                    d.Enrollment.StudyPID,
		"<ENROLLMENT_ID>":          d.Enrollment.ID.String(),
		"<ENROLLMENT_SIGNUP_DATE>": d.Enrollment.SignupTS.In(loc).Format("2006-01-02"),
		"<PR_COMPLETED>":           fmt.Sprintf("%.0f%%", d.Enrollment.PRCompleted*100),
		"<URL>":                    forwardURL,
		"<REMINDER_TIME>":          "",
		"<EXPIRE_TIME>":            "",
	}
	if d.Ping.ReminderTS != nil {
		v["<REMINDER_TIME>"] = d.Ping.ReminderTS.In(loc).Format(timeLayout)
	}
	if d.Ping.ExpireTS != nil {
		v["<EXPIRE_TIME>"] = d.Ping.ExpireTS.In(loc).Format(timeLayout)
	}
	return v
}

// Render substitutes every known placeholder in text
func (v Variables) Render(text string) string {
	pairs := make([]string, 0, len(v)*2)
	for k, val := range v {
		pairs = append(pairs, k, val)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// ForwardURL builds the click-through link for a ping. The link routes
// through the forwarder so clicks are recorded before the redirect.
func ForwardURL(baseURL string, p Ping) string {
	return fmt.Sprintf("%s/ping/%s?code=%s", strings.TrimRight(baseURL, "/"), p.ID, p.ForwardingCode)
}

// RenderMessage renders the outgoing message body for a delivery. When the
// template carries a URL the message gets an HTML link through the
// forwarder appended on its own line.
func RenderMessage(d Delivery, baseURL string) string {
	forward := ""
	if d.Template.URL != nil {
		forward = ForwardURL(baseURL, d.Ping)
	}
	vars := BuildVariables(d, forward)

	msg := vars.Render(d.Template.Message)
	if d.Template.URL != nil {
		label := DefaultURLLabel
		if d.Template.URLText != nil {
			label = *d.Template.URLText
		}
		msg += fmt.Sprintf("\n<a href=%q>%s</a>", forward, label)
	}
	return msg
}

// RenderTargetURL renders the survey URL a forwarded click redirects to,
// with the same placeholder substitution as the message body.
func RenderTargetURL(d Delivery) *string {
	if d.Template.URL == nil {
		return nil
	}
	vars := BuildVariables(d, "")
	rendered := vars.Render(*d.Template.URL)
	return &rendered
}
