package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testParams struct {
	Fixtures []string          `mapstructure:"fixtures"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	ReadOnly bool              `mapstructure:"read_only"`
	Pragmas  map[string]string `mapstructure:"pragmas"`
}

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		want    testParams
		wantErr bool
	}{
		{
			name:   "empty",
			params: nil,
			want:   testParams{},
		},
		{
			name: "typed values",
			params: map[string]any{
				"fixtures":  []any{"a.yaml", "b.yaml"},
				"timeout":   "2s",
				"read_only": true,
				"pragmas":   map[string]any{"journal_mode": "wal"},
			},
			want: testParams{
				Fixtures: []string{"a.yaml", "b.yaml"},
				Timeout:  2 * time.Second,
				ReadOnly: true,
				Pragmas:  map[string]string{"journal_mode": "wal"},
			},
		},
		{
			name: "weak strings from env",
			params: map[string]any{
				"fixtures":  "a.yaml,b.yaml",
				"read_only": "true",
			},
			want: testParams{
				Fixtures: []string{"a.yaml", "b.yaml"},
				ReadOnly: true,
			},
		},
		{
			name:    "unknown key",
			params:  map[string]any{"fixturez": "a.yaml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got testParams
			err := DecodeParams(tt.params, &got)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid adapter params")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
