package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	in := "  Paddy\x00 fields\t\tneed \r\nwater.\r\n\r\n\r\n\r\nNext   paragraph  "
	assert.Equal(t, "Paddy fields need\nwater.\n\nNext paragraph", Sanitize(in))
	assert.Equal(t, "", Sanitize(" \n\t \n"))
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("Should load plain text as a single page", func(t *testing.T) {
		path := filepath.Join(dir, "rice.txt")
		require.NoError(t, os.WriteFile(path, []byte("Rice requires standing water during the vegetative stage.\n"), 0o644))

		pages, err := NewLoader().Load(ctx, path)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, path, pages[0].Source)
		assert.Equal(t, 1, pages[0].Number)
		assert.Equal(t, "Rice requires standing water during the vegetative stage.", pages[0].Text)
	})

	t.Run("Should reject empty documents", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		require.NoError(t, os.WriteFile(path, []byte("   \n\n  "), 0o644))

		_, err := NewLoader().Load(ctx, path)
		require.ErrorIs(t, err, ErrNoText)
	})

	t.Run("Should reject unsupported types", func(t *testing.T) {
		path := filepath.Join(dir, "image.png")
		png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
		require.NoError(t, os.WriteFile(path, png, 0o644))

		_, err := NewLoader().Load(ctx, path)
		require.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("Should fail on missing files", func(t *testing.T) {
		_, err := NewLoader().Load(ctx, filepath.Join(dir, "missing.pdf"))
		require.Error(t, err)
	})

	t.Run("Should fail on corrupt pdf without fallback tool", func(t *testing.T) {
		path := filepath.Join(dir, "broken.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\nthis is not really a pdf"), 0o644))

		l := &Loader{}
		_, err := l.Load(ctx, path)
		require.Error(t, err)
	})
}
