package automation

// NewPlatformTransport selects the automation transport for the current OS:
// the persistent COM transport on Windows, the osascript transport
// elsewhere. scriptDir receives the pre-authored scripts on the osascript
// path; runner may be nil for the real subprocess runner.
func NewPlatformTransport(scriptDir string, runner Runner) (Transport, error) {
	return newPlatformTransport(scriptDir, runner)
}
