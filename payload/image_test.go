package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pixelflow/errors"
)

func TestImage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		img     *Image
		wantErr bool
	}{
		{"valid", New("a.png", 2, 2, 3), false},
		{"nil image", nil, true},
		{"nil pixels", &Image{Name: "a.png", Width: 2, Height: 2, Channels: 3}, true},
		{"zero width", &Image{Width: 0, Height: 2, Channels: 3, Pix: []byte{}}, true},
		{"short buffer", &Image{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 11)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.img.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidPayload)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestImage_Clone(t *testing.T) {
	img := New("dir/photo.JPG", 1, 1, 3)
	img.Pix[0] = 10
	img.ProducerID = 4

	c := img.Clone()
	require.NotNil(t, c)
	assert.Equal(t, img.ID, c.ID)
	assert.Equal(t, img.ProducerID, c.ProducerID)
	assert.Equal(t, img.Pix, c.Pix)

	c.Pix[0] = 99
	assert.Equal(t, byte(10), img.Pix[0], "clone must not share pixel memory")

	var nilImg *Image
	assert.Nil(t, nilImg.Clone())
}

func TestImage_Names(t *testing.T) {
	img := New("imagens/entrada/photo.JPG", 4, 3, 3)
	assert.Equal(t, "photo.JPG", img.BaseName())
	assert.Equal(t, ".jpg", img.Ext())
	assert.Equal(t, 36, img.Size())
	assert.Equal(t, "photo.JPG (4x3x3)", img.String())
}
