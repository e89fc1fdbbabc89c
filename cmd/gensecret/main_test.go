package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_run(t *testing.T) {
	gen := func(t *testing.T, args ...string) string {
		out := &bytes.Buffer{}
		err := run(append([]string{"gensecret"}, args...), out)
		require.NoError(t, err)
		return strings.TrimSuffix(out.String(), "\n")
	}

	t.Run("hex by default", func(t *testing.T) {
		key := gen(t)

		b, err := hex.DecodeString(key)
		require.NoError(t, err)
		require.Len(t, b, 32)
	})

	t.Run("keys are random", func(t *testing.T) {
		require.NotEqual(t, gen(t), gen(t))
	})

	t.Run("base64 longer key", func(t *testing.T) {
		key := gen(t, "-n", "48", "--encoding", "base64")

		b, err := base64.RawURLEncoding.DecodeString(key)
		require.NoError(t, err)
		require.Len(t, b, 48)
	})

	t.Run("dotenv line", func(t *testing.T) {
		line := gen(t, "--dotenv")

		require.True(t, strings.HasPrefix(line, "SECRET_KEY="), "got %q", line)
		require.Len(t, strings.TrimPrefix(line, "SECRET_KEY="), 64)
	})

	t.Run("fail", func(t *testing.T) {
		for _, args := range [][]string{
			{"-n", "16"},
			{"--encoding", "base32"},
			{"--unknown"},
		} {
			err := run(append([]string{"gensecret"}, args...), &bytes.Buffer{})
			require.Error(t, err, "args %v", args)
		}
	})
}
