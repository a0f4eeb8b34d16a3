package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// StudySortFields contains allowed sort fields for studies
var StudySortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"public_name":   true,
	"internal_name": true,
	"code":          true,
}

// EnrollmentSortFields contains allowed sort fields for enrollments
var EnrollmentSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"signup_ts":    true,
	"start_date":   true,
	"study_pid":    true,
	"enrolled":     true,
	"pr_completed": true,
}

// PingTemplateSortFields contains allowed sort fields for ping templates
var PingTemplateSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// PingSortFields contains allowed sort fields for pings
var PingSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"scheduled_ts": true,
	"expire_ts":    true,
	"reminder_ts":  true,
	"sent_ts":      true,
	"day_num":      true,
}
