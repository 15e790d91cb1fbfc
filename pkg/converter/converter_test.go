package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

func TestGoldenRow(t *testing.T) {
	c := NewRowConverter(zap.NewNop())

	g := model.GoldenRecord{NormalizedRecord: model.NormalizedRecord{
		Email:       "jane@acme.io",
		Name:        "Jane Doe",
		SignupDate:  "2024-06-15",
		Plan:        "Plan B",
		IsMultiPlan: true,
	}}

	assert.Equal(t, []string{"email", "name", "signup_date", "plan", "is_multi_plan"}, c.GoldenHeader())
	assert.Equal(t, []string{"jane@acme.io", "Jane Doe", "2024-06-15", "Plan B", "True"}, c.GoldenRow(g))

	g.IsMultiPlan = false
	assert.Equal(t, "False", c.GoldenRow(g)[4])
}

func TestQuarantineRowsKeepOriginalValues(t *testing.T) {
	c := NewRowConverter(nil)

	results := []model.ClassificationResult{
		model.QuarantinedResult(model.NormalizedRecord{
			Email: model.EmailInvalid,
			Raw: model.NewRawRecord(4, map[string]string{
				model.FieldEmail:      " Not-An-Email ",
				model.FieldName:       "Bob",
				model.FieldSignupDate: "01/02/2024",
				model.FieldPlan:       "b",
				"source":              "webinar",
			}),
		}, model.ReasonInvalidEmail),
		model.QuarantinedResult(model.NormalizedRecord{
			Raw: model.NewRawRecord(9, map[string]string{
				model.FieldEmail:      "x@acme.io",
				model.FieldName:       "",
				model.FieldSignupDate: "2024-01-01",
				model.FieldPlan:       "a",
				"campaign":            "spring",
			}),
		}, model.ReasonMissingField),
	}

	header, extras := c.QuarantineHeader(results)
	assert.Equal(t, []string{"campaign", "source"}, extras)
	assert.Equal(t, []string{"line", "email", "name", "signup_date", "plan", "campaign", "source", "reason"}, header)

	assert.Equal(t,
		[]string{"4", " Not-An-Email ", "Bob", "01/02/2024", "b", "", "webinar", "invalid email"},
		c.QuarantineRow(results[0], extras))
	assert.Equal(t,
		[]string{"9", "x@acme.io", "", "2024-01-01", "a", "spring", "", "missing required field"},
		c.QuarantineRow(results[1], extras))
}

func TestQuarantineHeaderWithoutExtras(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeExtraColumns = false
	c := NewRowConverterWithConfig(zap.NewNop(), cfg)

	header, extras := c.QuarantineHeader([]model.ClassificationResult{
		{Record: model.NormalizedRecord{Raw: model.NewRawRecord(1, map[string]string{"source": "x"})}},
	})
	assert.Empty(t, extras)
	assert.Equal(t, []string{"line", "email", "name", "signup_date", "plan", "reason"}, header)
}

func TestColumnDefinitions(t *testing.T) {
	c := NewRowConverter(zap.NewNop())
	defs := c.GoldenColumnDefinitions()
	require.NotEmpty(t, defs)
	assert.Equal(t, `"run_id" UUID NOT NULL`, defs[0])
	assert.Contains(t, c.QuarantineColumnDefinitions(), `"extra" JSONB NULL`)
	assert.Equal(t, `"public"."golden_members"`, QualifiedName("public", "Golden_Members"))
	assert.Equal(t, `"golden"`, QualifiedName("", "golden"))
}

func TestMapHeader(t *testing.T) {
	schema := model.SignupSchema()

	t.Run("maps aliases and extras", func(t *testing.T) {
		mapping, err := MapHeader([]string{"\ufeffEmail Address", " Full Name ", "Signup Date", "Plan", "Referral Source", ""}, schema)
		require.NoError(t, err)
		assert.Equal(t, []string{"email", "name", "signup_date", "plan", "referral_source", ""}, mapping.Fields())

		rec := mapping.Record(2, []string{"a@b.co", "Ann", "2024-01-01"})
		assert.Equal(t, 2, rec.Line)
		assert.Equal(t, "", rec.Values[model.FieldPlan])
		assert.Equal(t, "", rec.Values["referral_source"])
		_, hasBlank := rec.Values[""]
		assert.False(t, hasBlank)

		_, err = rec.Fields()
		assert.NoError(t, err)
	})

	t.Run("rejects missing required column", func(t *testing.T) {
		_, err := MapHeader([]string{"email", "name", "plan"}, schema)
		require.ErrorIs(t, err, ErrMissingColumn)
		assert.Contains(t, err.Error(), "signup_date")
	})

	t.Run("rejects duplicate mapping", func(t *testing.T) {
		_, err := MapHeader([]string{"email", "e-mail", "name", "signup_date", "plan"}, schema)
		assert.ErrorIs(t, err, ErrDuplicateColumn)
	})

	t.Run("rejects extras that collide", func(t *testing.T) {
		_, err := MapHeader([]string{"email", "name", "signup_date", "plan", "Referral Source", "referral  source"}, schema)
		require.ErrorIs(t, err, ErrDuplicateColumn)
		assert.Contains(t, err.Error(), "referral_source")
	})

	t.Run("rejects extras named like output columns", func(t *testing.T) {
		for _, name := range []string{"Line", " reason "} {
			_, err := MapHeader([]string{"email", "name", "signup_date", "plan", name}, schema)
			assert.ErrorIs(t, err, ErrDuplicateColumn, name)
		}
	})

	t.Run("ignores repeated blank headers", func(t *testing.T) {
		mapping, err := MapHeader([]string{"email", "", "name", "signup_date", "plan", " "}, schema)
		require.NoError(t, err)
		assert.Equal(t, []string{"email", "", "name", "signup_date", "plan", ""}, mapping.Fields())
	})
}

func TestToText(t *testing.T) {
	s := "x"
	assert.Equal(t, "", ToText(nil))
	assert.Equal(t, "x", ToText(&s))
	assert.Equal(t, "abc", ToText([]byte("abc")))
	assert.Equal(t, "42", ToText(int64(42)))
	assert.Equal(t, "1.5", ToText(1.5))
	assert.Equal(t, "2024-06-15", ToText(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-15T10:30:00Z", ToText(time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)))
}

func TestExtraJSON(t *testing.T) {
	data, err := ExtraJSON(model.NewRawRecord(1, map[string]string{model.FieldEmail: "a@b.co", "source": "ad"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"ad"}`, string(data))

	data, err = ExtraJSON(model.NewRawRecord(1, map[string]string{model.FieldEmail: "a@b.co"}))
	require.NoError(t, err)
	assert.Nil(t, data)
}
