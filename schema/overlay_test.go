package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOverlay = `
name = "site-profile"

[[segments]]
name = "PV1"

[segments.fields.2]
description = "Patient Class (site)"
required = true
allowed_values = [["I", "Inpatient"], ["O", "Outpatient"]]

[[segments]]
name = "ZQA"
description = "Questionnaire Answers"

[segments.fields.1]
description = "Answer Code"
datatype = "ST"
`

func TestDecodeFile(t *testing.T) {
	f, unknown, err := DecodeFile([]byte(sampleOverlay))
	require.NoError(t, err)
	assert.Empty(t, unknown)
	assert.Equal(t, "site-profile", f.Name)
	require.Len(t, f.Segments, 2)

	pv1 := f.Segments[0]
	assert.Equal(t, "PV1", pv1.Name)
	fld, ok := pv1.Fields["2"]
	require.True(t, ok)
	require.NotNil(t, fld.Description)
	assert.Equal(t, "Patient Class (site)", *fld.Description)
	require.NotNil(t, fld.Required)
	assert.True(t, *fld.Required)
	require.Len(t, fld.AllowedValues, 2)
	assert.Equal(t, []string{"I", "Inpatient"}, fld.AllowedValues[0])

	assert.Equal(t, []string{"PV1", "ZQA"}, f.SegmentNames())
}

func TestDecodeFileUnknownKeys(t *testing.T) {
	_, unknown, err := DecodeFile([]byte(`
name = "x"
colour = "blue"

[[segments]]
name = "PID"
frobnicate = 3
`))
	require.NoError(t, err)
	assert.Contains(t, unknown, "colour")
	assert.Contains(t, unknown, "segments.frobnicate")
}

func TestDecodeFileErrors(t *testing.T) {
	_, _, err := DecodeFile([]byte(`name = "x"` + "\n[[segments]]\ndescription = \"no name\"\n"))
	assert.Error(t, err)

	_, _, err = DecodeFile([]byte("[[segments]]\nname = \"PID\"\n[segments.fields.notanumber]\nrequired = true\n"))
	assert.Error(t, err)

	_, _, err = DecodeFile([]byte("[[segments]]\nname = \"PID\"\n[segments.fields.3]\nallowed_values = [[\"lonely\"]]\n"))
	assert.Error(t, err)

	_, _, err = DecodeFile([]byte("this is not toml ["))
	assert.Error(t, err)
}
