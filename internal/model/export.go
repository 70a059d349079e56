package model

// Export is the serializable snapshot written by the export subcommand:
// every wizard record with its full conversations, plus every diagnostic
// result grouped by variant.
type Export struct {
	InquiryRecords    []InquiryRecord               `json:"inquiry_records"`
	DiagnosticResults map[string][]DiagnosticResult `json:"diagnostic_results"`
}
