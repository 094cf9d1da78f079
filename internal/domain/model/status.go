package model

import "strings"

// NormalizeReportedStatus maps an externally reported status string onto the
// canonical enum. Matching is case-insensitive and the legacy success
// spellings SUCCESS and SUCCESSED collapse onto COMPLETED. Anything outside
// {COMPLETED, FAILED, TIMEOUT} is rejected.
func NormalizeReportedStatus(raw string) (SubmissionStatus, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if upper == "SUCCESS" || upper == "SUCCESSED" {
		upper = string(StatusCompleted)
	}
	status := SubmissionStatus(upper)
	if !ReportedStatuses[status] {
		return "", false
	}
	return status, true
}
