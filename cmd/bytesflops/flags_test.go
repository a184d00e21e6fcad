package main

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/bytesflops/internal/bf/abi"
)

func parseInstrumentFlags(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addInstrumentFlags(fs)
	require.NoError(t, fs.Parse(args))
	v := viper.New()
	require.NoError(t, bindInstrumentFlags(v, fs))
	return v
}

func TestInstrumentOptions(t *testing.T) {
	v := parseInstrumentFlags(t,
		"--bf-call-stack", "--bf-merge", "4",
		"--bf-reuse-dist", "loads", "--bf-reuse-dist", "stores",
		"--bf-max-reuse-dist", "100",
		"--bf-include", "foo(int,double)",
	)
	opts, err := instrumentOptions(v)
	require.NoError(t, err)

	assert.True(t, opts.CallStack)
	assert.Equal(t, 4, opts.MergeCount)
	assert.Equal(t, abi.AccessBoth, opts.ReuseDist)
	assert.Equal(t, int64(100), opts.MaxReuseDist)
	// The flag layer splits on commas; the selector reassembles.
	assert.Equal(t, []string{"foo(int", "double)"}, opts.Include)
}

func TestInstrumentOptions_Defaults(t *testing.T) {
	opts, err := instrumentOptions(parseInstrumentFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 1, opts.MergeCount)
	assert.Zero(t, opts.ReuseDist)
	assert.False(t, opts.ByFunc)
}

func TestInstrumentOptions_Invalid(t *testing.T) {
	_, err := instrumentOptions(parseInstrumentFlags(t, "--bf-merge", "0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge count")
}

func TestBindInstrumentFlags_Environment(t *testing.T) {
	t.Setenv("BF_VECTORS", "1")
	v := parseInstrumentFlags(t)
	v.SetEnvPrefix("BF")
	v.AutomaticEnv()
	opts, err := instrumentOptions(v)
	require.NoError(t, err)
	assert.True(t, opts.Vectors)
}

func TestInstrumentOptions_BadNumbersFromEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
		want string
	}{
		{name: "merge", env: "BF_MERGE", val: "4x", want: `invalid merge count "4x"`},
		{name: "max reuse", env: "BF_MAX_REUSE_DIST", val: "lots", want: `invalid max reuse distance "lots"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			v := parseInstrumentFlags(t)
			v.SetEnvPrefix("BF")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()

			_, err := instrumentOptions(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, err.Error(), "got 0")
		})
	}
}

func TestInstrumentOptions_CollectsEveryError(t *testing.T) {
	_, err := instrumentOptions(parseInstrumentFlags(t,
		"--bf-reuse-dist", "sideways",
		"--bf-include", "a", "--bf-exclude", "b",
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access kind")
	assert.Contains(t, err.Error(), "include")
}
