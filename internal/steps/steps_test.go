package steps

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zoro11031/browser-setup/internal/ui"
)

// scriptedPrompter replays canned answers. An empty input or a negative
// select takes the default. An exhausted queue behaves like the operator
// pressing Ctrl-C.
type scriptedPrompter struct {
	inputs    []string
	passwords []string
	confirms  []bool
	selects   []int
	asked     []string
}

func (s *scriptedPrompter) PromptYesNo(prompt string, defaultYes bool) (bool, error) {
	s.asked = append(s.asked, prompt)
	if len(s.confirms) == 0 {
		return false, ui.ErrAborted
	}
	answer := s.confirms[0]
	s.confirms = s.confirms[1:]
	return answer, nil
}

func (s *scriptedPrompter) PromptInput(prompt, defaultValue string) (string, error) {
	s.asked = append(s.asked, prompt)
	if len(s.inputs) == 0 {
		return "", ui.ErrAborted
	}
	answer := s.inputs[0]
	s.inputs = s.inputs[1:]
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

func (s *scriptedPrompter) PromptPassword(prompt string) (string, error) {
	s.asked = append(s.asked, prompt)
	if len(s.passwords) == 0 {
		return "", ui.ErrAborted
	}
	answer := s.passwords[0]
	s.passwords = s.passwords[1:]
	return answer, nil
}

func (s *scriptedPrompter) PromptSelect(prompt string, options []string, defaultIndex int) (int, error) {
	s.asked = append(s.asked, prompt)
	if len(s.selects) == 0 {
		return 0, ui.ErrAborted
	}
	answer := s.selects[0]
	s.selects = s.selects[1:]
	if answer < 0 {
		return defaultIndex, nil
	}
	return answer, nil
}

func (s *scriptedPrompter) count(prompt string) int {
	n := 0
	for _, p := range s.asked {
		if p == prompt {
			n++
		}
	}
	return n
}

type fakePorts struct {
	busy    map[int]bool
	checked []int
}

func (f *fakePorts) IsPortFree(ctx context.Context, port int) bool {
	f.checked = append(f.checked, port)
	return !f.busy[port]
}

type fakeSecrets struct {
	files map[string]string
}

func (f *fakeSecrets) WritePrivateFile(path string, content []byte) error {
	if f.files == nil {
		f.files = make(map[string]string)
	}
	f.files[path] = string(content)
	return nil
}

// fakeRunner answers commands through handler and records every call
type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	handler  func(cmd string) (string, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if f.handler == nil {
		return "", nil
	}
	return f.handler(cmd)
}

func (f *fakeRunner) ran(cmd string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// fakePackageManager installs into memory and logs refresh and install events
type fakePackageManager struct {
	name      string
	installed map[string]bool
	events    []string
	failOn    string
}

func newFakePackageManager(name string) *fakePackageManager {
	return &fakePackageManager{name: name, installed: make(map[string]bool)}
}

func (f *fakePackageManager) Name() string { return f.name }

func (f *fakePackageManager) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	return f.installed[pkg], nil
}

func (f *fakePackageManager) Install(ctx context.Context, pkgs ...string) error {
	f.events = append(f.events, "install "+strings.Join(pkgs, " "))
	for _, pkg := range pkgs {
		if pkg == f.failOn {
			return fmt.Errorf("no package %s available", pkg)
		}
		f.installed[pkg] = true
	}
	return nil
}

func (f *fakePackageManager) Refresh(ctx context.Context) error {
	f.events = append(f.events, "refresh")
	return nil
}
