// Package ui owns the shell's visible surfaces: a splash shown while the backend starts
// and the main surface revealed once supervision reaches a terminal state.
package ui

import (
	"log/slog"
	"sync"
)

// Surface names a top-level window of the shell.
type Surface string

const (
	Main   Surface = "main"
	Splash Surface = "splashscreen"
)

// Host shows and hides surfaces. HideOrClose on an absent surface is not an error.
type Host interface {
	Show(s Surface) error
	HideOrClose(s Surface) error
}

// Revealer performs the splash to main handoff exactly once.
type Revealer struct {
	host Host
	log  *slog.Logger
	once sync.Once
}

func NewRevealer(host Host, log *slog.Logger) *Revealer {
	if log == nil {
		log = slog.Default()
	}
	return &Revealer{host: host, log: log}
}

// Reveal shows the main surface and then dismisses the splash. Later calls do nothing.
// Failures are logged; the main surface is shown even when dismissing the splash fails.
func (r *Revealer) Reveal() {
	r.once.Do(func() {
		if err := r.host.Show(Main); err != nil {
			r.log.Warn("show main surface failed", "error", err)
		}
		if err := r.host.HideOrClose(Splash); err != nil {
			r.log.Warn("dismiss splash failed", "error", err)
		}
		r.log.Info("main surface revealed")
	})
}

// HeadlessHost tracks surface visibility without drawing anything.
type HeadlessHost struct {
	Logger *slog.Logger

	mu      sync.Mutex
	visible map[Surface]bool
}

// NewHeadlessHost starts with the splash visible, like a windowed shell.
func NewHeadlessHost(log *slog.Logger) *HeadlessHost {
	if log == nil {
		log = slog.Default()
	}
	return &HeadlessHost{Logger: log, visible: map[Surface]bool{Splash: true}}
}

func (h *HeadlessHost) Show(s Surface) error {
	h.mu.Lock()
	h.visible[s] = true
	h.mu.Unlock()
	h.Logger.Debug("surface shown", "surface", s)
	return nil
}

func (h *HeadlessHost) HideOrClose(s Surface) error {
	h.mu.Lock()
	delete(h.visible, s)
	h.mu.Unlock()
	h.Logger.Debug("surface closed", "surface", s)
	return nil
}

func (h *HeadlessHost) Visible(s Surface) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible[s]
}
