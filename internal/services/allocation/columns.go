package allocation

// Columns names the headers the allocator reads and writes. Lookup ignores
// case and treats underscores as spaces, so "id_number" finds "ID NUMBER".
type Columns struct {
	IDNumber         string `yaml:"id_number"`
	EmployeeNumber   string `yaml:"employee_number"`
	InstalmentAmount string `yaml:"instalment_amount"`
	Paid             string `yaml:"paid"`
	Diff             string `yaml:"diff"`
}

// DefaultColumns returns the headers used by the loan submission workbooks.
func DefaultColumns() Columns {
	return Columns{
		IDNumber:         "ID NUMBER",
		EmployeeNumber:   "EMPLOYEE NUMBER",
		InstalmentAmount: "INSTALMENT AMOUNT",
		Paid:             "PAID",
		Diff:             "DIFF",
	}
}

// withDefaults fills blank names from DefaultColumns.
func (c Columns) withDefaults() Columns {
	d := DefaultColumns()
	if c.IDNumber == "" {
		c.IDNumber = d.IDNumber
	}
	if c.EmployeeNumber == "" {
		c.EmployeeNumber = d.EmployeeNumber
	}
	if c.InstalmentAmount == "" {
		c.InstalmentAmount = d.InstalmentAmount
	}
	if c.Paid == "" {
		c.Paid = d.Paid
	}
	if c.Diff == "" {
		c.Diff = d.Diff
	}
	return c
}
