package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"Keyword":  ModeKeyword,
		"semantic": ModeSemantic,
		"hybrid":   ModeHybrid,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("fuzzy")
	assert.True(t, IsQueryError(err))
}

func TestResolvePlan(t *testing.T) {
	tests := []struct {
		name        string
		mode        Mode
		query       string
		hasProvider bool
		want        plan
	}{
		{"short query", ModeAuto, "deploy logs", true, plan{mode: ModeKeyword, keyword: true}},
		{"snake case", ModeAuto, "where is max_retry_count set", true, plan{mode: ModeKeyword, keyword: true}},
		{"camel case", ModeAuto, "find the parseConfig helper please", true, plan{mode: ModeKeyword, keyword: true}},
		{"path", ModeAuto, "changes to internal/search engine", true, plan{mode: ModeKeyword, keyword: true}},
		{"quoted", ModeAuto, `"exact phrase here"`, true, plan{mode: ModeKeyword, keyword: true}},
		{"question", ModeAuto, "how did we fix the login bug?", true, plan{mode: ModeSemantic, semantic: true, fallback: true}},
		{"interrogative", ModeAuto, "what broke the nightly build", true, plan{mode: ModeSemantic, semantic: true, fallback: true}},
		{"phrase", ModeAuto, "billing service outage", true, plan{mode: ModeHybrid, keyword: true, semantic: true}},
		{"question without provider", ModeAuto, "why was the release delayed", false, plan{mode: ModeKeyword, keyword: true}},
		{"long statement", ModeAuto, "we talked about the budget.", true, plan{mode: ModeSemantic, semantic: true, fallback: true}},
		{"phrase without provider", ModeAuto, "billing service outage", false, plan{mode: ModeKeyword, keyword: true}},
		{"explicit semantic", ModeSemantic, "x", true, plan{mode: ModeSemantic, semantic: true}},
		{"explicit keyword", ModeKeyword, "how did we fix the login bug?", true, plan{mode: ModeKeyword, keyword: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolvePlan(tt.mode, tt.query, tt.hasProvider))
		})
	}
}

func TestBuildMatch(t *testing.T) {
	assert.Equal(t, `"api" AND "keys"`, buildMatch("api keys"))
	assert.Equal(t, `"say""hi"""`, buildMatch(`say"hi"`))
	assert.Equal(t, `"c++"`, buildMatch("c++ --"))
	assert.Empty(t, buildMatch("?? !!"))
}

func TestModeFromFlags(t *testing.T) {
	m, err := ModeFromFlags("hybrid", false, false)
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, m)

	m, err = ModeFromFlags("hybrid", true, false)
	require.NoError(t, err)
	assert.Equal(t, ModeSemantic, m)

	m, err = ModeFromFlags("", false, true)
	require.NoError(t, err)
	assert.Equal(t, ModeKeyword, m)

	_, err = ModeFromFlags("", true, true)
	assert.True(t, IsQueryError(err))
}
