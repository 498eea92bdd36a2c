package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCells(t *testing.T) {
	assert.True(t, NullCell().IsNull())
	assert.Equal(t, "", NullCell().String())
	assert.Equal(t, "abc", TextCell("abc").String())
	assert.Equal(t, "5400", NumCell(5400).String())
	assert.Equal(t, "0.5", NumCell(0.5).String())
	assert.Equal(t, "-3", NumCell(-3).String())
	_, ok := TextCell("12").Num()
	assert.False(t, ok)
	x, ok := NumCell(12).Num()
	assert.True(t, ok)
	assert.Equal(t, float64(12), x)
	var zero Cell
	assert.Equal(t, Null, zero.Kind())
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]string{"a", "b", "a"})
	assert.ErrorIs(t, err, ErrStructure)
}

func TestReadWrite(t *testing.T) {
	input := "1|alice|Unknown\n2||INVALID\n3|bob|x y\n"
	tbl, err := Read(strings.NewReader(input), []string{"id", "user", "note"}, DefaultFormat())
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, TextCell("alice"), tbl.Get(0, "user"))
	assert.True(t, tbl.Get(0, "note").IsNull())
	assert.True(t, tbl.Get(1, "user").IsNull())
	assert.True(t, tbl.Get(1, "note").IsNull())
	assert.True(t, tbl.Get(2, "nonexistent").IsNull())

	var out bytes.Buffer
	require.NoError(t, Write(&out, tbl, DefaultFormat()))
	assert.Equal(t, "1|alice|\n2||\n3|bob|x y\n", out.String())

	f := DefaultFormat()
	f.Header = true
	out.Reset()
	require.NoError(t, Write(&out, tbl, f))
	assert.True(t, strings.HasPrefix(out.String(), "id|user|note\n"))

	again, err := Read(&out, nil, f)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "user", "note"}, again.Columns())
	assert.Equal(t, 3, again.NumRows())
}

func TestReadWrongFieldCount(t *testing.T) {
	_, err := Read(strings.NewReader("1|a|b\n2|c\n"), []string{"x", "y", "z"}, DefaultFormat())
	assert.ErrorIs(t, err, ErrStructure)
}

func TestReadHeaderMismatch(t *testing.T) {
	f := DefaultFormat()
	f.Header = true
	_, err := Read(strings.NewReader("x|q\n1|2\n"), []string{"x", "y"}, f)
	assert.ErrorIs(t, err, ErrStructure)
	_, err = Read(strings.NewReader(""), nil, f)
	assert.ErrorIs(t, err, ErrStructure)
}

func TestOtherDelimiter(t *testing.T) {
	f := Format{Delimiter: ',', NullTokens: []string{"", "NA"}}
	tbl, err := Read(strings.NewReader("1,NA\n"), []string{"a", "b"}, f)
	require.NoError(t, err)
	assert.True(t, tbl.Get(0, "b").IsNull())
}

func TestProject(t *testing.T) {
	tbl := MustNew([]string{"a", "b", "c"})
	require.NoError(t, tbl.AppendRow([]Cell{NumCell(1), TextCell("x"), NullCell()}))
	assert.ErrorIs(t, tbl.AppendRow([]Cell{NumCell(1)}), ErrStructure)

	p, err := tbl.Project([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, p.Columns())
	assert.Equal(t, []string{"1"}, p.ColumnStrings("a"))

	p.Set(0, 1, NumCell(2))
	assert.Equal(t, "1", tbl.Get(0, "a").String())

	_, err = tbl.Project([]string{"zz"})
	assert.ErrorIs(t, err, ErrStructure)
}
