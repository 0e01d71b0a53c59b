package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/podforge/internal/domain"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		in      string
		want    Rule
		wantErr bool
	}{
		{in: "3/2m", want: Rule{Rate: 3, Period: 2 * time.Minute}},
		{in: " 10 / 1h ", want: Rule{Rate: 10, Period: time.Hour}},
		{in: "1/30s", want: Rule{Rate: 1, Period: 30 * time.Second}},
		{in: "3", wantErr: true},
		{in: "x/2m", wantErr: true},
		{in: "3/soon", wantErr: true},
		{in: "0/2m", wantErr: true},
		{in: "3/0s", wantErr: true},
		{in: "-1/1m", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "3/2m0s", DefaultRule.String())
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	for _, kind := range domain.ActionKinds {
		assert.Equal(t, DefaultRule, rules[kind], kind)
	}
	assert.Equal(t, DefaultBillingRule, rules[KindBilling])
}

func TestMaxPeriod(t *testing.T) {
	l := &Limiter{rules: Rules{
		domain.ActionAudio: {Rate: 1, Period: time.Minute},
		KindBilling:        {Rate: 1, Period: time.Hour},
	}}
	assert.Equal(t, time.Hour, l.maxPeriod())

	empty := &Limiter{}
	assert.Equal(t, DefaultRule.Period, empty.maxPeriod())
}
