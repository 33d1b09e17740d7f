package image

// Encoded is a capture re-encoded into the vision transport format.
type Encoded struct {
	Bytes        []byte
	Base64       string
	Width        int
	Height       int
	SourceFormat string
}

// ValidationResult captures the outcome of buffer validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
