package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateImageAcceptsJPEGAndPNG(t *testing.T) {
	t.Parallel()

	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)
	ct, err := ValidateImage(jpeg)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", ct)
	require.Equal(t, "jpg", ImageExtension(ct))

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)
	ct, err = ValidateImage(png)
	require.NoError(t, err)
	require.Equal(t, "image/png", ct)
	require.Equal(t, "png", ImageExtension(ct))
}

func TestValidateImageRejections(t *testing.T) {
	t.Parallel()

	_, err := ValidateImage(nil)
	require.ErrorIs(t, err, ErrEmptyImage)

	// The declared content type never matters; GIF bytes are not accepted.
	gif := append([]byte("GIF89a"), make([]byte, 32)...)
	_, err = ValidateImage(gif)
	require.ErrorIs(t, err, ErrBadFormat)

	_, err = ValidateImage([]byte("this is definitely not an image"))
	require.ErrorIs(t, err, ErrBadFormat)

	big := make([]byte, MaxImageBytes+1)
	copy(big, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	_, err = ValidateImage(big)
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestNormalizeStores(t *testing.T) {
	t.Parallel()

	all, err := NormalizeStores(nil)
	require.NoError(t, err)
	require.Equal(t, SupportedStores(), all)

	got, err := NormalizeStores([]string{StoreAsos, StoreZalando, StoreAsos})
	require.NoError(t, err)
	require.Equal(t, []string{StoreAsos, StoreZalando}, got)

	_, err = NormalizeStores([]string{StoreZalando, "amazon"})
	require.ErrorIs(t, err, ErrUnknownStore)
}
