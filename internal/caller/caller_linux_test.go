//go:build linux

package caller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentPIDFromStat(t *testing.T) {
	tests := []struct {
		name string
		stat string
		ppid int
		ok   bool
	}{
		{
			name: "plain comm",
			stat: "1234 (bash) S 1000 1234 1234 0 -1 4194560",
			ppid: 1000,
			ok:   true,
		},
		{
			name: "comm with spaces and parens",
			stat: "42 (tmux: server (v3)) S 7 42 42 0 -1 0",
			ppid: 7,
			ok:   true,
		},
		{
			name: "truncated line",
			stat: "42 (x)",
			ok:   false,
		},
		{
			name: "no ppid field",
			stat: "42 (x) S",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ppid, err := parentPIDFromStat(tt.stat)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ppid, ppid)
		})
	}
}
