package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Level: "info", Format: "json"})

	l.Debug("忽略的调试日志")
	l.Info("图书价格已重算", "book_id", 42)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "图书价格已重算", entry["msg"])
	assert.EqualValues(t, 42, entry["book_id"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Level: "warn", Format: "console"})

	l.Info("不会输出")
	l.Warn("入队失败", "job", "recalc.book")

	assert.NotContains(t, buf.String(), "不会输出")
	assert.Contains(t, buf.String(), "job=recalc.book")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "catalog.log")

	l, closer, err := New(Options{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("写入文件")
	require.NoError(t, closer())
	assert.FileExists(t, path)
}

func TestContextLogger(t *testing.T) {
	fallback := Nop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	l := NewWithWriter(&bytes.Buffer{}, Options{})
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx, fallback))
}
