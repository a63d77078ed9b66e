package ports

// DocumentOpener hands a generated deck or a URL to the system viewer
type DocumentOpener interface {
	// Open starts the platform viewer for target without waiting for it to exit
	Open(target string) error
	// Detect names the viewer Open would use
	Detect() (string, error)
}
