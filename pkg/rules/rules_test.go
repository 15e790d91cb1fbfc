package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

func TestDefaultCompiles(t *testing.T) {
	m, err := Default().Compile()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, Default().DateLayouts, m.DateLayouts())
}

func TestCanonicalPlan(t *testing.T) {
	m := MustCompileDefault()

	tests := []struct {
		raw  string
		want model.Plan
	}{
		{"Plan A", "Plan A"},
		{"plan a", "Plan A"},
		{"  PLAN_A ", "Plan A"},
		{"plan-b", "Plan B"},
		{"B", "Plan B"},
		{"enterprise", "Plan C"},
		{"", model.PlanUnknown},
		{"gold", model.PlanUnknown},
		{"unknown", model.PlanUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, m.CanonicalPlan(tt.raw))
		})
	}
}

func TestIsTestName(t *testing.T) {
	m := MustCompileDefault()

	assert.True(t, m.IsTestName("Test User"))
	assert.True(t, m.IsTestName("DUMMY"))
	assert.True(t, m.IsTestName("n/a"))
	assert.True(t, m.IsTestName("Jane asdf"))
	assert.True(t, m.IsTestName("xxx"))

	assert.False(t, m.IsTestName(""))
	assert.False(t, m.IsTestName("Celeste Contesti"))
	assert.False(t, m.IsTestName("Nadia Barros"))
	assert.False(t, m.IsTestName("Na Kim"))
	assert.False(t, m.IsTestName("Rafael Bar"))
	assert.False(t, m.IsTestName("Ana Foo"))
}

func TestParseDate(t *testing.T) {
	m := MustCompileDefault()

	for _, raw := range []string{"03/15/2024", "3/15/2024", "2024-03-15", "15-Mar-2024", "15-MAR-2024"} {
		got, ok := m.ParseDate(raw)
		require.True(t, ok, raw)
		assert.Equal(t, "2024-03-15", got.Format(model.DateLayout), raw)
	}

	_, ok := m.ParseDate("13/45/2024")
	assert.False(t, ok)
	_, ok = m.ParseDate("yesterday")
	assert.False(t, ok)
}

func TestIsPlaceholderEmail(t *testing.T) {
	assert.False(t, MustCompileDefault().IsPlaceholderEmail("jane@example.com"))

	rs, err := Parse([]byte(`
placeholder_email_domains: [example.com]
placeholder_email_locals: [noreply]
`))
	require.NoError(t, err)
	m, err := rs.Compile()
	require.NoError(t, err)

	assert.True(t, m.IsPlaceholderEmail("jane@example.com"))
	assert.True(t, m.IsPlaceholderEmail("noreply@acme.io"))
	assert.False(t, m.IsPlaceholderEmail("jane@acme.io"))
	assert.False(t, m.IsPlaceholderEmail("invalid"))
}

func TestValidate(t *testing.T) {
	t.Run("requires date layouts", func(t *testing.T) {
		rs := Default()
		rs.DateLayouts = nil
		assert.ErrorIs(t, rs.Validate(), ErrInvalidRuleSet)
	})

	t.Run("rejects reserved plan name", func(t *testing.T) {
		rs := Default()
		rs.Plans = append(rs.Plans, PlanRule{Name: "unknown"})
		assert.ErrorIs(t, rs.Validate(), ErrInvalidRuleSet)
	})

	t.Run("rejects synonym claimed by two plans", func(t *testing.T) {
		rs := Default()
		rs.Plans = []PlanRule{
			{Name: "Plan A", Synonyms: []string{"starter"}},
			{Name: "Plan B", Synonyms: []string{"Starter"}},
		}
		_, err := rs.Compile()
		assert.ErrorIs(t, err, ErrInvalidRuleSet)
	})
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
test_name_tokens: ["zzz"]
plans:
  - name: Gold
    synonyms: [g, premium]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zzz"}, rs.TestNameTokens)
	assert.Equal(t, Default().DateLayouts, rs.DateLayouts)

	m, err := rs.Compile()
	require.NoError(t, err)
	assert.Equal(t, model.Plan("Gold"), m.CanonicalPlan("Premium"))
	assert.Equal(t, model.PlanUnknown, m.CanonicalPlan("Plan A"))
	assert.True(t, m.IsTestName("zzz"))
	assert.False(t, m.IsTestName("test"))
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	rs, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), rs)
}
