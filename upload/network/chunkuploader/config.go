package chunkuploader

// DefaultConcurrency is the number of chunks uploaded in parallel when the
// configuration does not say otherwise.
const DefaultConcurrency = 3

// Config holds configuration for the chunk uploader.
type Config struct {
	// Concurrency is the maximum number of parallel chunk uploads.
	// Default: 3
	Concurrency int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: DefaultConcurrency,
	}
}

// ChunkCount returns the number of chunks a file of totalSize bytes is split into.
func ChunkCount(totalSize, chunkSize int64) int {
	if totalSize <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((totalSize + chunkSize - 1) / chunkSize)
}
