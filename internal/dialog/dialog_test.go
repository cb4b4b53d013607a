package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/ncruces/zenity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	audio, ok := Preset("")
	require.True(t, ok)
	assert.Equal(t, []string{"wav", "mp3", "flac", "ogg", "m4a"}, audio[0].Extensions)
	assert.Equal(t, "All Files", audio[len(audio)-1].Name)

	pred, ok := Preset("Predictions")
	require.True(t, ok)
	assert.Equal(t, []string{"csv", "pkl"}, pred[0].Extensions)

	model, ok := Preset("model")
	require.True(t, ok)
	assert.Len(t, model, 1)

	_, ok = Preset("video")
	assert.False(t, ok)

	for _, n := range PresetNames() {
		_, ok := Preset(n)
		assert.True(t, ok, n)
	}
}

func TestSaveFilters(t *testing.T) {
	assert.Equal(t, "JSON Files", SaveFilters("results.JSON")[0].Name)
	assert.Equal(t, "CSV Files", SaveFilters("results.csv")[0].Name)
	assert.Equal(t, "CSV Files", SaveFilters("results")[0].Name)
}

func TestFileFilters(t *testing.T) {
	got := fileFilters([]Filter{{Name: "Text Files", Extensions: []string{"txt", ".csv"}}, allFiles})
	require.Len(t, got, 2)
	assert.Equal(t, zenity.FileFilter{Name: "Text Files", Patterns: []string{"*.txt", "*.csv"}, CaseFold: true}, got[0])
	assert.Equal(t, []string{"*"}, got[1].Patterns)
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(zenity.ErrCanceled), ErrCancelled)
	assert.ErrorIs(t, mapError(context.Canceled), context.Canceled)
	assert.NotErrorIs(t, mapError(context.Canceled), ErrUnavailable)

	err := mapError(zenity.ErrUnsupported)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, zenity.ErrUnsupported)
}

// stubDialogs swaps the dialog entry points for the duration of a test.
func stubDialogs(t *testing.T, multi func(...zenity.Option) ([]string, error), single func(...zenity.Option) (string, error)) {
	t.Helper()
	oldMulti, oldFile, oldSave := selectFileMultiple, selectFile, selectFileSave
	t.Cleanup(func() { selectFileMultiple, selectFile, selectFileSave = oldMulti, oldFile, oldSave })
	if multi != nil {
		selectFileMultiple = multi
	}
	if single != nil {
		selectFile, selectFileSave = single, single
	}
}

func TestNative_PickFiles(t *testing.T) {
	var nopts int
	stubDialogs(t, func(opts ...zenity.Option) ([]string, error) {
		nopts = len(opts)
		return []string{"/a/one.wav", "/b/two.mp3"}, nil
	}, nil)
	filters, _ := Preset("audio")
	paths, err := Native{Title: "Open audio"}.PickFiles(context.Background(), filters)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/one.wav", "/b/two.mp3"}, paths)
	// context, title and filters
	assert.Equal(t, 3, nopts)
}

func TestNative_Cancelled(t *testing.T) {
	stubDialogs(t,
		func(...zenity.Option) ([]string, error) { return nil, zenity.ErrCanceled },
		func(...zenity.Option) (string, error) { return "", zenity.ErrCanceled })
	n := Native{}
	_, err := n.PickFiles(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = n.PickFolder(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = n.SaveFile(context.Background(), "out.csv", SaveFilters("out.csv"))
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestNative_EmptySelectionIsCancelled(t *testing.T) {
	stubDialogs(t,
		func(...zenity.Option) ([]string, error) { return nil, nil },
		func(...zenity.Option) (string, error) { return "", nil })
	_, err := Native{}.PickFiles(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = Native{}.PickFolder(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestNative_SaveFile(t *testing.T) {
	var nopts int
	stubDialogs(t, nil, func(opts ...zenity.Option) (string, error) {
		nopts = len(opts)
		return "/home/u/out.json", nil
	})
	p, err := Native{}.SaveFile(context.Background(), "out.json", SaveFilters("out.json"))
	require.NoError(t, err)
	assert.Equal(t, "/home/u/out.json", p)
	// context, confirm overwrite, filters and file name
	assert.Equal(t, 4, nopts)
}

func TestNative_Unavailable(t *testing.T) {
	stubDialogs(t, nil, func(...zenity.Option) (string, error) {
		return "", errors.New("cannot open display")
	})
	_, err := Native{}.PickFolder(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "cannot open display")
}
