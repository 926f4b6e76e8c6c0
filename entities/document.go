package entities

// DocumentKind tags the type of regulatory document returned by the portal
type DocumentKind string

const (
	// DocumentKindRCM is the summary of product characteristics
	DocumentKindRCM DocumentKind = "RCM"
	// DocumentKindFI is the patient leaflet, reserved and never fetched today
	DocumentKindFI DocumentKind = "FI"
)

// RegulatoryDocument is a PDF captured from the portal
type RegulatoryDocument struct {
	Kind        DocumentKind
	ContentType string
	Data        []byte
}

// FetchStatus is the terminal state of a leaflet fetch
type FetchStatus string

const (
	FetchStatusFound          FetchStatus = "found"
	FetchStatusNotFound       FetchStatus = "not_found"
	FetchStatusCaptureTimeout FetchStatus = "capture_timeout"
)

// FetchResult is what the retrieval orchestrator hands back for one identity.
// RCM is nil unless Status is FetchStatusFound. FI is always nil.
type FetchResult struct {
	FetchID       string
	Status        FetchStatus
	RCM           *RegulatoryDocument
	FI            *RegulatoryDocument
	Tier          int // 1-based tier that produced candidates, 0 when none did
	Attempts      int // number of portal searches performed
	Match         *SearchResultCandidate
	LowConfidence bool
}

// Found reports whether a document was captured
func (r *FetchResult) Found() bool {
	return r != nil && r.Status == FetchStatusFound && r.RCM != nil && len(r.RCM.Data) > 0
}
