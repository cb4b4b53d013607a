package dialog

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrCancelled is returned when the user dismisses a dialog without choosing.
	ErrCancelled = errors.New("dialog cancelled")
	// ErrUnavailable is returned when no dialog subsystem can be reached.
	ErrUnavailable = errors.New("dialog subsystem unavailable")
)

// Filter restricts a file dialog to the given extensions. "*" matches everything.
type Filter struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// Service opens native file dialogs.
type Service interface {
	PickFiles(ctx context.Context, filters []Filter) ([]string, error)
	PickFolder(ctx context.Context) (string, error)
	SaveFile(ctx context.Context, suggested string, filters []Filter) (string, error)
}

var allFiles = Filter{Name: "All Files", Extensions: []string{"*"}}

var presets = map[string][]Filter{
	"audio": {
		{Name: "Audio Files", Extensions: []string{"wav", "mp3", "flac", "ogg", "m4a"}},
		allFiles,
	},
	"predictions": {
		{Name: "Prediction Files", Extensions: []string{"csv", "pkl"}},
		{Name: "CSV Files", Extensions: []string{"csv"}},
		{Name: "PKL Files", Extensions: []string{"pkl"}},
		allFiles,
	},
	"text": {
		{Name: "Text Files", Extensions: []string{"txt", "csv"}},
		allFiles,
	},
	"json": {
		{Name: "JSON Files", Extensions: []string{"json"}},
		allFiles,
	},
	"model": {allFiles},
}

// Preset returns the filters registered under name. The empty name selects "audio".
func Preset(name string) ([]Filter, bool) {
	if name == "" {
		name = "audio"
	}
	f, ok := presets[strings.ToLower(name)]
	return f, ok
}

// PresetNames lists the known preset names.
func PresetNames() []string {
	return []string{"audio", "predictions", "text", "json", "model"}
}

// SaveFilters picks JSON or CSV filters from the suggested file name.
func SaveFilters(suggested string) []Filter {
	if strings.Contains(strings.ToLower(suggested), ".json") {
		return []Filter{{Name: "JSON Files", Extensions: []string{"json"}}, allFiles}
	}
	return []Filter{{Name: "CSV Files", Extensions: []string{"csv"}}, allFiles}
}
