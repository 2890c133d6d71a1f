package tabular

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRead_CSV(t *testing.T) {
	data := "\ufeffID NUMBER,EMPLOYEE NUMBER,PAID\n1,A,10.50\n\n,,\n2,B,\"1,200\"\n"
	table, err := Read(strings.NewReader(data), "collected.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"ID NUMBER", "EMPLOYEE NUMBER", "PAID"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "10.50", table.Cell(0, 2))
	assert.Equal(t, "1,200", table.Cell(1, 2))
}

func TestRead_CSVDelimiters(t *testing.T) {
	for name, data := range map[string]string{
		"tab":       "ID NUMBER\tPAID\n1\t5\n",
		"semicolon": "ID NUMBER;PAID\n1;5\n",
	} {
		t.Run(name, func(t *testing.T) {
			table, err := Read(strings.NewReader(data), "in.csv")
			require.NoError(t, err)
			assert.Equal(t, []string{"ID NUMBER", "PAID"}, table.Columns)
			assert.Equal(t, "5", table.Cell(0, 1))
		})
	}
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(strings.NewReader("x"), "input.pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = Read(strings.NewReader(""), "empty.csv")
	assert.True(t, errors.Is(err, ErrEmptyTable))
}

func TestRead_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"ID NUMBER", "EMPLOYEE NUMBER", "INSTALMENT AMOUNT"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1001, "E1", 250.75}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{1002, "E2", 100}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	table, err := Read(&buf, "submission.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID NUMBER", "EMPLOYEE NUMBER", "INSTALMENT AMOUNT"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "1001", table.Cell(0, 0))
	assert.Equal(t, "250.75", table.Cell(0, 2))
	assert.Equal(t, "E2", table.Cell(1, 1))
}

func TestRead_SemicolonDecimalCommaRejected(t *testing.T) {
	table, err := Read(strings.NewReader("ID NUMBER;EMPLOYEE NUMBER;PAID\n1;A;100,50\n"), "collected.csv")
	require.NoError(t, err)
	require.Equal(t, "100,50", table.Cell(0, 2))

	_, _, err = ParseAmount(table.Cell(0, 2))
	assert.Error(t, err)
}

func TestWriteXLSX_CellTypes(t *testing.T) {
	table := New("ID NUMBER", "PAID", "NOTE")
	table.Rows = [][]string{{"00123", "60", "ok"}, {"7", "12.5"}}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, table))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(0)

	typ, err := f.GetCellType(sheet, "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, typ, "leading zeros must stay text")
	v, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "00123", v)

	v, err = f.GetCellValue(sheet, "B3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "12.5", v)
	v, err = f.GetCellValue(sheet, "C3")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestWriteFile_CSV(t *testing.T) {
	table := New("A", "B")
	table.Rows = [][]string{{"1"}, {"2", "x"}}
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteFile(path, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A,B\n1,\n2,x\n", string(data))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", back.Cell(1, 1))

	assert.True(t, errors.Is(WriteFile(filepath.Join(t.TempDir(), "out.ods"), table), ErrUnsupportedFormat))
}

func TestTable_Helpers(t *testing.T) {
	table := New("ID NUMBER", "employee_number")
	table.Rows = [][]string{{"1"}}

	assert.Equal(t, 0, table.ColumnIndex("id_number"))
	assert.Equal(t, 1, table.ColumnIndex("EMPLOYEE  NUMBER"))
	assert.Equal(t, -1, table.ColumnIndex("PAID"))

	paid := table.EnsureColumn("PAID")
	assert.Equal(t, 2, paid)
	table.Set(0, paid, "5")
	assert.Equal(t, []string{"1", "", "5"}, table.Rows[0])

	clone := table.Clone()
	clone.Set(0, 0, "9")
	assert.Equal(t, "1", table.Cell(0, 0))
	assert.Equal(t, "", table.Cell(3, 0))
}

func TestAmounts(t *testing.T) {
	v, ok, err := ParseAmount(" 1,234.50 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1234.5, v)

	_, ok, err = ParseAmount("")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = ParseAmount("-12,345,678.9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, -12345678.9, v)

	for _, bad := range []string{"100,50", "1,2345", "12,34.5", ",100", "1,000,", "1,,000"} {
		_, ok, err = ParseAmount(bad)
		assert.Error(t, err, bad)
		assert.False(t, ok, bad)
	}

	_, _, err = ParseAmount("abc")
	assert.Error(t, err)
	_, _, err = ParseAmount("1e400")
	assert.Error(t, err)

	assert.Equal(t, "0.3", FormatAmount(0.3))
	assert.Equal(t, "40", FormatAmount(40))
	assert.Equal(t, "12.30", FormatMoney(12.3))
}
