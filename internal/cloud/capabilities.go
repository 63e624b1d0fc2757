package cloud

import (
	"os/exec"

	"pld/internal/providers"
)

// UserPrompt asks the person at the machine to approve an action. The
// interactive authorization flow is its only consumer.
type UserPrompt interface {
	Confirm(message string) bool
}

// ExternalOpener opens a URL outside the process, normally in the desktop
// browser.
type ExternalOpener interface {
	Open(url string) error
}

// logPrompt is the headless default: it surfaces the message in the sync log
// and approves. Hosts with a UI inject their own prompt.
type logPrompt struct {
	logger providers.Logger
}

func NewLogPrompt(logger providers.Logger) UserPrompt {
	return &logPrompt{logger: logger}
}

func (p *logPrompt) Confirm(message string) bool {
	p.logger.Infof(providers.TypeSync, "%s", message)
	return true
}

// execOpener shells out to xdg-open. Failure is not fatal: the authorization
// URL is also available via the auth status endpoint and the log.
type execOpener struct {
	logger providers.Logger
}

func NewExecOpener(logger providers.Logger) ExternalOpener {
	return &execOpener{logger: logger}
}

func (o *execOpener) Open(url string) error {
	cmd := exec.Command("xdg-open", url)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		// Reap the child; xdg-open exits as soon as the browser takes over.
		_ = cmd.Wait()
	}()
	return nil
}
