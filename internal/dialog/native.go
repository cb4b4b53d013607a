package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ncruces/zenity"
)

// Native implements Service with the platform's file dialogs: the system pickers on
// Windows and macOS, zenity (or a compatible tool) on other Unix systems.
type Native struct {
	Title string
}

// dialog entry points; replaced in tests
var (
	selectFileMultiple = zenity.SelectFileMultiple
	selectFile         = zenity.SelectFile
	selectFileSave     = zenity.SelectFileSave
)

func (n Native) PickFiles(ctx context.Context, filters []Filter) ([]string, error) {
	paths, err := selectFileMultiple(n.options(ctx, fileFilters(filters))...)
	if err != nil {
		return nil, mapError(err)
	}
	if len(paths) == 0 {
		return nil, ErrCancelled
	}
	return paths, nil
}

func (n Native) PickFolder(ctx context.Context) (string, error) {
	p, err := selectFile(n.options(ctx, zenity.Directory())...)
	return checkPath(p, err)
}

func (n Native) SaveFile(ctx context.Context, suggested string, filters []Filter) (string, error) {
	opts := n.options(ctx, zenity.ConfirmOverwrite(), fileFilters(filters))
	if suggested != "" {
		opts = append(opts, zenity.Filename(suggested))
	}
	return checkPath(selectFileSave(opts...))
}

func (n Native) options(ctx context.Context, extra ...zenity.Option) []zenity.Option {
	opts := []zenity.Option{zenity.Context(ctx)}
	if n.Title != "" {
		opts = append(opts, zenity.Title(n.Title))
	}
	return append(opts, extra...)
}

func checkPath(p string, err error) (string, error) {
	if err != nil {
		return "", mapError(err)
	}
	if p == "" {
		return "", ErrCancelled
	}
	return p, nil
}

// mapError translates dialog library errors into ErrCancelled and ErrUnavailable.
// Context errors pass through unchanged.
func mapError(err error) error {
	switch {
	case errors.Is(err, zenity.ErrCanceled):
		return ErrCancelled
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

// fileFilters converts filters to glob patterns, e.g. {"Text", [txt csv]} -> *.txt *.csv.
func fileFilters(filters []Filter) zenity.FileFilters {
	out := make(zenity.FileFilters, 0, len(filters))
	for _, f := range filters {
		globs := make([]string, 0, len(f.Extensions))
		for _, ext := range f.Extensions {
			if ext == "*" {
				globs = append(globs, "*")
				continue
			}
			globs = append(globs, "*."+strings.TrimPrefix(ext, "."))
		}
		out = append(out, zenity.FileFilter{Name: f.Name, Patterns: globs, CaseFold: true})
	}
	return out
}
