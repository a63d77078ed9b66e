package viewer

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// ErrNoViewer is returned when no known viewer command is installed
var ErrNoViewer = errors.New("no supported viewer found on this system")

// Viewer is one way of opening a file or URL on a platform
type Viewer struct {
	Name    string
	Command string
	Args    func(target string) []string
}

// Opener opens generated decks with the desktop's default application
type Opener struct {
	viewers  []Viewer
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// NewOpener creates an opener for the current platform
func NewOpener() *Opener {
	return &Opener{
		viewers:  platformViewers(runtime.GOOS),
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

// Open starts the first available viewer for target
func (o *Opener) Open(target string) error {
	v, err := o.selectViewer()
	if err != nil {
		return fmt.Errorf("viewer selection: %w", err)
	}

	if err := o.start(v.Command, v.Args(target)...); err != nil {
		return fmt.Errorf("launching %s: %w", v.Name, err)
	}
	return nil
}

// Detect returns the viewer Open would use
func (o *Opener) Detect() (string, error) {
	v, err := o.selectViewer()
	if err != nil {
		return "", err
	}
	return v.Name, nil
}

func (o *Opener) selectViewer() (*Viewer, error) {
	for _, candidate := range o.viewers {
		if _, err := o.lookPath(candidate.Command); err == nil {
			return &candidate, nil
		}
	}
	return nil, ErrNoViewer
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204 - command comes from the fixed platform table
	if err := cmd.Start(); err != nil {
		return err
	}

	// The viewer outlives the command; only reap it
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func platformViewers(goos string) []Viewer {
	passThrough := func(target string) []string { return []string{target} }

	switch goos {
	case "darwin":
		return []Viewer{
			{Name: "Default", Command: "open", Args: passThrough},
		}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []Viewer{
			{Name: "xdg-open", Command: "xdg-open", Args: passThrough},
			{Name: "gio", Command: "gio", Args: func(target string) []string { return []string{"open", target} }},
			{Name: "LibreOffice Impress", Command: "libreoffice", Args: func(target string) []string { return []string{"--impress", target} }},
		}
	case "windows":
		return []Viewer{
			{Name: "Default", Command: "cmd", Args: func(target string) []string { return []string{"/c", "start", "", target} }},
		}
	default:
		return nil
	}
}

var _ ports.DocumentOpener = (*Opener)(nil)
