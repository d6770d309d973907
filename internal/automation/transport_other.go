//go:build !windows

package automation

func newPlatformTransport(scriptDir string, runner Runner) (Transport, error) {
	return NewScriptTransport(scriptDir, runner)
}
