package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr string
	}{
		{
			name:  "plain values",
			input: "PREACT_APP_API=https://api.example.com\nOTHER=1\n",
			want:  map[string]string{"PREACT_APP_API": "https://api.example.com", "OTHER": "1"},
		},
		{
			name:  "comments and blank lines",
			input: "# comment\n\nKEY=value # trailing\n",
			want:  map[string]string{"KEY": "value"},
		},
		{
			name:  "export prefix",
			input: "export KEY=value\n",
			want:  map[string]string{"KEY": "value"},
		},
		{
			name:  "double quoted with escapes",
			input: `KEY="hello\nworld # not a comment"`,
			want:  map[string]string{"KEY": "hello\nworld # not a comment"},
		},
		{
			name:  "quoted value with trailing comment",
			input: "PREACT_APP_API=\"https://api.example.com\" # the api\n",
			want:  map[string]string{"PREACT_APP_API": "https://api.example.com"},
		},
		{
			name:  "single quoted",
			input: "KEY='a # b'\n",
			want:  map[string]string{"KEY": "a # b"},
		},
		{
			name:  "empty value",
			input: "KEY=\n",
			want:  map[string]string{"KEY": ""},
		},
		{
			name:  "later wins",
			input: "KEY=1\nKEY=2\n",
			want:  map[string]string{"KEY": "2"},
		},
		{
			name:    "missing equals",
			input:   "KEY\n",
			wantErr: "failed to parse .env",
		},
		{
			name:    "bad quoting",
			input:   "A=1\nKEY=\"open\n",
			wantErr: "failed to parse .env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnv([]byte(tt.input), ".env")
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	vars, err := LoadEnvFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Empty(t, vars)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KEY=value\n"), 0o600))
	vars, err = LoadEnvFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"KEY": "value"}, vars)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("A=base\nB=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.production"), []byte("B=prod\nC=prod\n"), 0o600))

	vars, err := LoadEnvFiles(
		filepath.Join(dir, ".env"),
		filepath.Join(dir, ".env.missing"),
		filepath.Join(dir, ".env.production"),
	)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"A": "base", "B": "prod", "C": "prod"}, vars)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.bad"), []byte("KEY=\"open\n"), 0o600))
	_, err = LoadEnvFiles(filepath.Join(dir, ".env"), filepath.Join(dir, ".env.bad"))
	require.ErrorContains(t, err, ".env.bad")
}
