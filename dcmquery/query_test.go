package dcmquery_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rsnactp/dcm"
	"github.com/rsnactp/dcm/dcmquery"
	"github.com/rsnactp/dcm/dcmtag"
)

func resolverFor(values map[string]string) dcmquery.Resolver {
	return func(ident string) string { return values[ident] }
}

func TestEvaluateEqualsAndOperators(t *testing.T) {
	resolve := resolverFor(map[string]string{
		"Modality":    "CT",
		"PatientSex":  "F",
		"SeriesDescr": "chest/abdomen",
	})

	ok, err := dcmquery.EvaluateScript(`Modality.equals("CT")`, resolve)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dcmquery.EvaluateScript(`Modality.equals("MR") + PatientSex.equals("F")`, resolve)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dcmquery.EvaluateScript(`Modality.equals("CT") * PatientSex.equals("M")`, resolve)
	require.NoError(t, err)
	require.False(t, ok)

	// '*' binds tighter than '+': this reads as A + (B * C), not (A + B) * C.
	ok, err = dcmquery.EvaluateScript(`Modality.equals("CT") + PatientSex.equals("F") * PatientSex.equals("M")`, resolve)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dcmquery.EvaluateScript(`!Modality.equals("MR")`, resolve)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dcmquery.EvaluateScript(`SeriesDescr.contains("abdomen")`, resolve)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dcmquery.EvaluateScript(`SeriesDescr.matches("^chest/[a-z]+$")`, resolve)
	require.NoError(t, err)
	require.True(t, ok)

	// Comments and parentheses.
	ok, err = dcmquery.EvaluateScript("// prefer MR\n(Modality.equals(\"CT\") + Modality.equals(\"MR\"))", resolve)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvaluateBarewordBooleans(t *testing.T) {
	resolve := resolverFor(nil)

	ok, err := dcmquery.EvaluateScript(`true`, resolve)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dcmquery.EvaluateScript(`false`, resolve)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestEvaluateEqualsTrueFalseLiteralIsNotBareword guards against confusing
// the bareword true/false literal (spec.md's dedicated operand alternative,
// no identifier or method involved) with a genuine identifier.equals("true")
// call, which must compare against the resolved value like any other
// equals() call, not short-circuit to a hardcoded boolean.
func TestEvaluateEqualsTrueFalseLiteralIsNotBareword(t *testing.T) {
	resolve := resolverFor(map[string]string{"Flag": "no"})

	ok, err := dcmquery.EvaluateScript(`Flag.equals("true")`, resolve)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = dcmquery.EvaluateScript(`Flag.equals("no")`, resolve)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvaluateUnknownMethodIsFalse(t *testing.T) {
	resolve := resolverFor(map[string]string{"Modality": "CT"})
	ok, err := dcmquery.EvaluateScript(`Modality.soundsLike("CT")`, resolve)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseMalformedScript(t *testing.T) {
	_, err := dcmquery.Parse(`Modality.equals("CT"`)
	require.Error(t, err)
	var scriptErr *dcmquery.ScriptError
	require.ErrorAs(t, err, &scriptErr)
}

func TestMatchQueryRetrieveUniversalAndGlob(t *testing.T) {
	ds := &dcm.Dataset{Elements: []*dcm.Element{
		dcm.MustNewElement(dcmtag.PatientName, "Doe^Jane"),
	}}

	universal := dcm.MustNewElement(dcmtag.PatientName, "")
	ok, _, err := dcmquery.MatchQueryRetrieve(ds, universal)
	require.NoError(t, err)
	require.True(t, ok)

	glob := dcm.MustNewElement(dcmtag.PatientName, "Doe*")
	ok, matched, err := dcmquery.MatchQueryRetrieve(ds, glob)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, matched)

	nomatch := dcm.MustNewElement(dcmtag.PatientName, "Smith*")
	ok, _, err = dcmquery.MatchQueryRetrieve(ds, nomatch)
	require.NoError(t, err)
	require.False(t, ok)
}
