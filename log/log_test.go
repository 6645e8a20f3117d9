package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler(&bytes.Buffer{})
	assert.NotNil(t, h)
	assert.True(t, h.Enabled(context.TODO(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelDebug))
}

func TestNewHandler_Options(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf,
		WithLevel(slog.LevelDebug),
		WithSource(true),
		WithJSON(true),
	)
	assert.True(t, h.Enabled(context.TODO(), slog.LevelDebug))

	slog.New(h).Debug("loaded bundle", "bundle", "file:///lv2/amp.lv2/")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "loaded bundle", rec["msg"])
	assert.Equal(t, "file:///lv2/amp.lv2/", rec["bundle"])
	assert.Contains(t, rec, slog.SourceKey)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextLogger(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := slog.New(NewHandler(&bytes.Buffer{}))
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestUnitLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, UnitLevel(UnitLevelTrace))
	assert.Equal(t, slog.LevelInfo, UnitLevel(UnitLevelNote))
	assert.Equal(t, slog.LevelWarn, UnitLevel(UnitLevelWarning))
	assert.Equal(t, slog.LevelError, UnitLevel(UnitLevelError))
	assert.Equal(t, slog.LevelError, UnitLevel(99))
}

func TestErrorAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, WithJSON(true)))

	logger.Warn("instantiate failed", ErrorAttr(&domainerrors.MissingFeaturesError{
		Plugin:  "urn:amp",
		Missing: []string{"urn:f"},
	}))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	group, ok := rec["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "feature", group["type"])
	assert.Equal(t, "urn:amp", group["code"])
	assert.Equal(t, []any{"urn:f"}, group["missing"])

	buf.Reset()
	logger.Warn("plain", ErrorAttr(errors.New("boom")))
	var plain map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &plain))
	group = plain["error"].(map[string]any)
	assert.Equal(t, "internal", group["type"])
	assert.NotContains(t, group, "code")
}

func TestErrorAttr_Nil(t *testing.T) {
	assert.True(t, ErrorAttr(nil).Equal(slog.Attr{}))
}
