package securityconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Settings {
	return Settings{SessionTimeoutMinutes: 30, MaxConcurrentSessions: 5}
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, defaults().Validate())

	bad := defaults()
	bad.SessionTimeoutMinutes = 0
	assert.Error(t, bad.Validate())

	bad = defaults()
	bad.MaxConcurrentSessions = 0
	assert.Error(t, bad.Validate())
}

func TestStatic_Get(t *testing.T) {
	s, err := Static(defaults()).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults(), s)
}

func TestOverlay(t *testing.T) {
	testCases := []struct {
		name   string
		values map[string]string
		want   Settings
	}{
		{"empty keeps defaults", nil, defaults()},
		{
			"valid overrides",
			map[string]string{
				KeySessionTimeoutMinutes: "15",
				KeyMaxConcurrentSessions: " 2 ",
				KeyTwoFactorMandatory:    "TRUE",
			},
			Settings{SessionTimeoutMinutes: 15, MaxConcurrentSessions: 2, TwoFactorMandatory: true},
		},
		{
			"invalid values ignored",
			map[string]string{
				KeySessionTimeoutMinutes: "-1",
				KeyMaxConcurrentSessions: "zero",
				KeyTwoFactorMandatory:    "maybe",
			},
			defaults(),
		},
		{
			"numeric bool",
			map[string]string{KeyTwoFactorMandatory: "1"},
			Settings{SessionTimeoutMinutes: 30, MaxConcurrentSessions: 5, TwoFactorMandatory: true},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlay(defaults(), tc.values))
		})
	}
}
