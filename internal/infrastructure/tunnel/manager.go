package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sync"
	"time"

	config "github.com/frcrag/frcrag/configs"
	domain "github.com/frcrag/frcrag/internal/core/domain/tunnel"
	"github.com/frcrag/frcrag/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// urlPatterns matches the public URL each provider prints on startup.
var urlPatterns = map[string]*regexp.Regexp{
	"cloudflare": regexp.MustCompile(`https://[a-z0-9-]+\.trycloudflare\.com`),
	"ngrok":      regexp.MustCompile(`https://[a-z0-9-]+\.(?:ngrok-free\.app|ngrok\.io)`),
}

// process is a running tunnel subprocess. Lines carries combined
// stdout/stderr output; Done yields the exit error once.
type process interface {
	Lines() <-chan string
	Done() <-chan error
	Kill()
}

// launcher spawns a tunnel process. Injected so tests can substitute a
// fake for the external binary.
type launcher func(binary string, args ...string) (process, error)

// Manager owns the singleton tunnel process and its state machine:
// stopped -> starting -> running, failed reachable from starting (no
// URL within the startup deadline, spawn error) and from running
// (process died). All transitions happen under one mutex.
type Manager struct {
	mu     sync.Mutex
	state  domain.State
	proc   process
	gen    int // invalidates monitors of replaced processes
	cfg    *config.TunnelConfig
	launch launcher
	logger *logrus.Logger
}

func NewManager(cfg *config.TunnelConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		state:  domain.State{Status: domain.StatusStopped, Provider: cfg.Provider},
		cfg:    cfg,
		launch: execLaunch,
		logger: logger,
	}
}

func (m *Manager) args() (string, []string) {
	switch m.cfg.Provider {
	case "cloudflare":
		binary := m.cfg.Binary
		if binary == "" {
			binary = "cloudflared"
		}
		return binary, []string{"tunnel", "--url", m.cfg.LocalURL}
	case "ngrok":
		binary := m.cfg.Binary
		if binary == "" {
			binary = "ngrok"
		}
		return binary, []string{"http", "--log", "stdout", m.cfg.LocalURL}
	default:
		return m.cfg.Binary, []string{m.cfg.LocalURL}
	}
}

// Start launches the tunnel unless one is already starting or running,
// in which case it is a no-op that returns the current state.
func (m *Manager) Start(ctx context.Context) (domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.Status {
	case domain.StatusStarting, domain.StatusRunning:
		return m.state, nil
	}
	if m.cfg.Provider == "" {
		return m.state, fmt.Errorf("no tunnel provider configured")
	}

	binary, args := m.args()
	proc, err := m.launch(binary, args...)
	if err != nil {
		m.state = domain.State{Status: domain.StatusFailed, Provider: m.cfg.Provider, LastError: err.Error()}
		return m.state, fmt.Errorf("start tunnel: %w", err)
	}

	m.proc = proc
	m.gen++
	m.state = domain.State{Status: domain.StatusStarting, Provider: m.cfg.Provider, StartedAt: time.Now().UTC()}
	if m.logger != nil {
		m.logger.WithFields(logrus.Fields{"provider": m.cfg.Provider, "binary": binary}).Info("tunnel starting")
	}

	go m.monitor(proc, m.gen)
	return m.state, nil
}

// monitor follows one process generation: scans output for the public
// URL, enforces the startup deadline, and detects unexpected death.
func (m *Manager) monitor(proc process, gen int) {
	pattern := urlPatterns[m.cfg.Provider]
	lines := proc.Lines()
	deadline := time.NewTimer(m.cfg.StartupTimeout)
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if pattern == nil {
				continue
			}
			if url := pattern.FindString(line); url != "" {
				m.transition(gen, func() {
					if m.state.Status == domain.StatusStarting {
						m.state.Status = domain.StatusRunning
						m.state.PublicURL = url
						if m.logger != nil {
							m.logger.WithField("public_url", url).Info("tunnel running")
						}
					}
				})
				pattern = nil // URL captured; keep draining lines
			}
		case <-deadline.C:
			stillStarting := false
			m.transition(gen, func() {
				if m.state.Status == domain.StatusStarting {
					stillStarting = true
					m.state = domain.State{
						Status:    domain.StatusFailed,
						Provider:  m.cfg.Provider,
						LastError: fmt.Sprintf("no public URL within %s", m.cfg.StartupTimeout),
					}
				}
			})
			if stillStarting {
				proc.Kill()
				if m.logger != nil {
					m.logger.Warn("tunnel failed: startup deadline exceeded")
				}
				return
			}
		case err := <-proc.Done():
			m.transition(gen, func() {
				if m.state.Status == domain.StatusStarting || m.state.Status == domain.StatusRunning {
					msg := "tunnel process exited unexpectedly"
					if err != nil {
						msg = err.Error()
					}
					m.state = domain.State{Status: domain.StatusFailed, Provider: m.cfg.Provider, LastError: msg}
					if m.logger != nil {
						m.logger.WithField("error", msg).Warn("tunnel failed")
					}
				}
			})
			return
		}
	}
}

// transition runs fn under the lock only if the monitored process is
// still the current one; a stale monitor must not clobber state owned
// by a newer generation.
func (m *Manager) transition(gen int, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	fn()
}

// Stop terminates the tunnel process from any phase and returns to
// stopped. Idempotent.
func (m *Manager) Stop() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.proc != nil {
		m.proc.Kill()
		m.proc = nil
	}
	m.gen++ // orphan any running monitor
	m.state = domain.State{Status: domain.StatusStopped, Provider: m.cfg.Provider}
	if m.logger != nil {
		m.logger.Info("tunnel stopped")
	}
	return m.state
}

// State returns a snapshot for health/status reporting.
func (m *Manager) State() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

var _ ports.TunnelManager = (*Manager)(nil)

// execProcess adapts exec.Cmd to the process interface.
type execProcess struct {
	cmd   *exec.Cmd
	lines chan string
	done  chan error
}

func (p *execProcess) Lines() <-chan string { return p.lines }
func (p *execProcess) Done() <-chan error   { return p.done }
func (p *execProcess) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func execLaunch(binary string, args ...string) (process, error) {
	cmd := exec.Command(binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, lines: make(chan string, 64), done: make(chan error, 1)}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case p.lines <- scanner.Text():
			default: // drop when nobody is reading fast enough
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	go func() {
		wg.Wait()
		close(p.lines)
		p.done <- cmd.Wait()
	}()

	return p, nil
}
