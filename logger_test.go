package crann

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" DEBUG ", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLogger(t *testing.T) {
	console := NewLogger("warn", "console")
	require.NotNil(t, console)
	assert.True(t, console.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, console.Core().Enabled(zapcore.InfoLevel))

	json := NewLogger("debug", "JSON")
	require.NotNil(t, json)
	assert.True(t, json.Core().Enabled(zapcore.DebugLevel))
}

func TestWithLogger_Nil(t *testing.T) {
	c := New(WithLogger(nil))
	assert.NotNil(t, c.Logger())
}

func TestContainerLogging(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	root := New(WithLogger(zap.New(observed)))

	require.NoError(t, Register[Logger](root).ToImplementation(reflect.TypeFor[*ConsoleLogger]()).AsSingleton())
	child, err := root.CreateChild()
	require.NoError(t, err)
	MustResolve[Logger](child)
	require.NoError(t, child.Dispose())

	registered := logs.FilterMessage("binding registered").All()
	require.Len(t, registered, 1)
	assert.Equal(t, "crann.Logger", registered[0].ContextMap()["key"])
	assert.Equal(t, "root", registered[0].ContextMap()["container"])

	assert.Equal(t, 1, logs.FilterMessage("child container created").Len())
	assert.Equal(t, 1, logs.FilterMessage("singleton created").Len())

	disposed := logs.FilterMessage("container disposed").All()
	require.Len(t, disposed, 1)
	assert.Equal(t, "child", disposed[0].ContextMap()["container"])
}

func TestDisposeFailureIsLogged(t *testing.T) {
	observed, logs := observer.New(zapcore.ErrorLevel)
	c := New(WithLogger(zap.New(observed)))
	require.NoError(t, Register[*panickingService](c).ToSelf().AsSingleton())
	MustResolve[*panickingService](c)

	assert.Error(t, c.Dispose())
	assert.Equal(t, 1, logs.FilterMessage("failed to dispose instance").Len())
}
