package types

// Collection is a server-side named set of ROMs the user may choose to
// mirror locally (spec.md §3, GLOSSARY).
type Collection struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// DownloadProgress tracks an in-flight collection download for the status
// assembler (spec.md §4.5/§4.6).
type DownloadProgress struct {
	Downloaded    int     `json:"downloaded"`
	Total         int     `json:"total"`
	DownloadedPct float64 `json:"downloaded_pct"`
	SpeedBytesSec float64 `json:"speed"`
}

// RemovalEvent records a collection-membership removal pass for the status
// assembler to surface (spec.md §4.5).
type RemovalEvent struct {
	RemovedCount int    `json:"removed_count"`
	DeletedCount int    `json:"deleted_count"`
	Timestamp    string `json:"timestamp"`
}
