package processor

// Default configuration values for the processor.
const (
	// DefaultConcurrency is the default number of transactions loaded at once.
	DefaultConcurrency = 4
)
