package camera

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFocusPoint(t *testing.T) {
	bounds := Size{Width: 200, Height: 400}
	tests := []struct {
		name     string
		view     Point
		bounds   Size
		position Position
		want     Point
	}{
		{"back centre", Point{100, 200}, bounds, PositionBack, Point{0.5, 0.5}},
		{"back top left", Point{0, 0}, bounds, PositionBack, Point{0, 1}},
		{"back off centre", Point{50, 100}, bounds, PositionBack, Point{0.25, 0.75}},
		{"front off centre", Point{50, 100}, bounds, PositionFront, Point{0.25, 0.25}},
		{"clamped", Point{-10, 900}, bounds, PositionFront, Point{1, 0}},
		{"empty view", Point{5, 5}, Size{}, PositionBack, Point{0.5, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FocusPoint(tt.view, tt.bounds, tt.position)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestSelectDevice(t *testing.T) {
	wide := DeviceInfo{ID: "w", Type: DeviceWideAngle, Position: PositionBack}
	triple := DeviceInfo{ID: "t", Type: DeviceTriple, Position: PositionBack}
	dualWide := DeviceInfo{ID: "dw", Type: DeviceDualWide, Position: PositionBack}
	tele := DeviceInfo{ID: "tele", Type: DeviceTelephoto, Position: PositionBack}
	front := DeviceInfo{ID: "f", Type: DeviceWideAngle, Position: PositionFront}

	got, ok := SelectDevice([]DeviceInfo{wide, triple, dualWide, front}, PositionBack)
	assert.True(t, ok)
	assert.Equal(t, dualWide, got)

	got, ok = SelectDevice([]DeviceInfo{wide, triple}, PositionBack)
	assert.True(t, ok)
	assert.Equal(t, triple, got)

	got, ok = SelectDevice([]DeviceInfo{tele, wide}, PositionBack)
	assert.True(t, ok)
	assert.Equal(t, wide, got, "falls back to single wide-angle")

	got, ok = SelectDevice([]DeviceInfo{wide, front}, PositionFront)
	assert.True(t, ok)
	assert.Equal(t, front, got)

	_, ok = SelectDevice([]DeviceInfo{tele}, PositionBack)
	assert.False(t, ok)
	_, ok = SelectDevice(nil, PositionFront)
	assert.False(t, ok)
}

func TestDefaultZoom(t *testing.T) {
	assert.Equal(t, 2.0, DefaultZoom(DeviceInfo{Type: DeviceDualWide, Position: PositionBack}))
	assert.Equal(t, 2.0, DefaultZoom(DeviceInfo{Type: DeviceTriple, Position: PositionBack}))
	assert.Equal(t, 1.0, DefaultZoom(DeviceInfo{Type: DeviceWideAngle, Position: PositionBack}))
	assert.Equal(t, 1.0, DefaultZoom(DeviceInfo{Type: DeviceDual, Position: PositionFront}))
}

func TestErrorClassification(t *testing.T) {
	perm := error(&PermissionError{Media: MediaVideo, Status: AuthorizationDenied})
	assert.ErrorIs(t, perm, ErrPermissionDenied)
	assert.ErrorIs(t, &PermissionError{Status: AuthorizationRestricted}, ErrPermissionRestricted)
	assert.ErrorIs(t, &PermissionError{Status: AuthorizationNotDetermined}, ErrPermissionUnknown)
	assert.Contains(t, perm.Error(), "denied")

	cause := errors.New("busy")
	cfg := error(&ConfigurationError{Kind: ErrCannotAddInput, Err: cause})
	assert.ErrorIs(t, cfg, ErrCannotAddInput)
	assert.ErrorIs(t, cfg, cause)
	assert.NotErrorIs(t, cfg, ErrCannotAddOutput)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", &ConfigurationError{Kind: ErrDeviceUnavailable}), ErrDeviceUnavailable)

	var unsupported *UnsupportedError
	err := fmt.Errorf("ctl: %w", &UnsupportedError{Op: "zoom", Device: DeviceWideAngle})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "zoom", unsupported.Op)
}

func TestPositionOpposite(t *testing.T) {
	assert.Equal(t, PositionFront, PositionBack.Opposite())
	assert.Equal(t, PositionBack, PositionFront.Opposite())
	assert.Equal(t, PositionBack, PositionUnspecified.Opposite())
	assert.True(t, DeviceDualWide.IsMultiLens())
	assert.False(t, DeviceUltraWide.IsMultiLens())
	assert.Equal(t, 90, OrientationPortrait.Rotation())
}

func TestParseNames(t *testing.T) {
	p, err := ParsePosition("")
	require.NoError(t, err)
	assert.Equal(t, PositionBack, p)
	p, err = ParsePosition("front")
	require.NoError(t, err)
	assert.Equal(t, PositionFront, p)
	_, err = ParsePosition("side")
	assert.Error(t, err)

	for _, o := range []Orientation{OrientationPortrait, OrientationPortraitUpsideDown, OrientationLandscapeRight, OrientationLandscapeLeft} {
		got, err := ParseOrientation(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err = ParseOrientation("diagonal")
	assert.Error(t, err)
}
