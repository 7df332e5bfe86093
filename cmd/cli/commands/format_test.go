package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/core/services"
)

func TestParseQuota(t *testing.T) {
	tests := []struct {
		arg      string
		expected services.QuotaRequest
		wantErr  bool
	}{
		{"3:5", services.QuotaRequest{ClassID: 3, Max: 5}, false},
		{"12:0", services.QuotaRequest{ClassID: 12, Max: 0}, false},
		{"3", services.QuotaRequest{}, true},
		{"x:5", services.QuotaRequest{}, true},
		{"3:many", services.QuotaRequest{}, true},
		{"-1:5", services.QuotaRequest{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			q, err := parseQuota(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, q)
		})
	}
}

func TestParseGrant(t *testing.T) {
	g, err := parseGrant("alice:30")
	require.NoError(t, err)
	assert.Equal(t, services.SpecialGrant{Participant: "alice", Reward: 30}, g)

	g, err = parseGrant("a:b:45")
	require.NoError(t, err)
	assert.Equal(t, "a:b", g.Participant)

	for _, arg := range []string{"alice", ":30", "alice:"} {
		_, err := parseGrant(arg)
		assert.Error(t, err, arg)
	}
}

func TestParseVolType(t *testing.T) {
	vt, err := parseVolType("Outside")
	require.NoError(t, err)
	assert.Equal(t, model.VolTypeOutside, vt)

	_, err = parseVolType("space")
	assert.Error(t, err)
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		minutes  int
		expected string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h"},
		{95, "1h35m"},
		{125, "2h05m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatMinutes(tt.minutes))
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "-", formatDate(nil))
	d := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", formatDate(&d))
}

func TestPageFooter(t *testing.T) {
	assert.Equal(t, "page 2 of 3, 25 total", pageFooter(25, 2, 10))
	assert.Equal(t, "page 1 of 1, 0 total", pageFooter(0, 1, 10))
	assert.Equal(t, "7 total", pageFooter(7, 1, 0))
}

func TestThoughtColor(t *testing.T) {
	assert.Equal(t, colorGreen, thoughtColor(model.ThoughtAccepted))
	assert.Equal(t, colorRed, thoughtColor(model.ThoughtRejected))
	assert.Equal(t, colorYellow, thoughtColor(model.ThoughtSpike))
	assert.Equal(t, colorDim, thoughtColor(model.ThoughtDraft))
}
