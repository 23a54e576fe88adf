package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

// Column layouts of the import files
var (
	MaterialHeader = []string{"code", "name", "category", "unit", "unit_price", "min_stock", "max_stock", "reorder_point", "description"}
	BOQHeader      = []string{"material_code", "description", "category", "unit", "planned_qty", "unit_rate"}
)

// MaterialRow is one parsed line of a material import
type MaterialRow struct {
	Line         int
	Code         string
	Name         string
	Category     entities.MaterialCategory
	Unit         string
	UnitPrice    decimal.Decimal
	MinStock     decimal.Decimal
	MaxStock     decimal.Decimal
	ReorderPoint decimal.Decimal
	Description  string
}

// BOQRow is one parsed line of a BOQ import
type BOQRow struct {
	Line         int
	MaterialCode string
	Description  string
	Category     string
	Unit         string
	PlannedQty   decimal.Decimal
	UnitRate     decimal.Decimal
}

// RowError reports a line that could not be imported
type RowError struct {
	Line int    `json:"row"`
	Msg  string `json:"error"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Msg)
}

// Loader reads and writes the CSV exchange formats
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// ReadMaterials parses a material import. Rows that fail to parse are returned as
// RowErrors and do not stop the import; a missing or malformed header does.
func (l *Loader) ReadMaterials(r io.Reader) ([]MaterialRow, []RowError, error) {
	records, columns, err := readRecords(r, "materials", MaterialHeader)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []MaterialRow
		rowErrs []RowError
	)
	for i, record := range records {
		line := i + 2
		row, err := parseMaterial(field(record, columns))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Msg: err.Error()})
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

// WriteMaterials writes materials in the import layout followed by status and current stock
func (l *Loader) WriteMaterials(w io.Writer, materials []*entities.Material) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string{}, MaterialHeader...), "status", "current_stock")); err != nil {
		return fmt.Errorf("failed to write materials header: %w", err)
	}
	for _, m := range materials {
		if err := writer.Write([]string{
			m.Code,
			m.Name,
			string(m.Category),
			m.Unit,
			m.UnitPrice.String(),
			m.MinStock.String(),
			m.MaxStock.String(),
			m.ReorderPoint.String(),
			m.Description,
			string(m.Status),
			m.CurrentStock.String(),
		}); err != nil {
			return fmt.Errorf("failed to write material %s: %w", m.Code, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadBOQ parses a BOQ import
func (l *Loader) ReadBOQ(r io.Reader) ([]BOQRow, []RowError, error) {
	records, columns, err := readRecords(r, "BOQ", BOQHeader)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []BOQRow
		rowErrs []RowError
	)
	for i, record := range records {
		line := i + 2
		row, err := parseBOQ(field(record, columns))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Msg: err.Error()})
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

// WriteBOQ writes BOQ lines; codes maps material IDs to material codes
func (l *Loader) WriteBOQ(w io.Writer, items []*entities.BOQItem, codes map[string]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string{}, BOQHeader...), "consumed_qty", "amount")); err != nil {
		return fmt.Errorf("failed to write BOQ header: %w", err)
	}
	for _, item := range items {
		code := codes[item.MaterialID]
		if code == "" {
			code = item.MaterialID
		}
		if err := writer.Write([]string{
			code,
			item.Description,
			item.Category,
			item.Unit,
			item.PlannedQty.String(),
			item.UnitRate.String(),
			item.ConsumedQty.String(),
			item.Amount().String(),
		}); err != nil {
			return fmt.Errorf("failed to write BOQ line %s: %w", item.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// readRecords reads every record and maps the expected columns to their index.
// Extra columns are allowed so that an export can be imported back.
func readRecords(r io.Reader, kind string, expected []string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%s CSV must have header and at least one data row", kind)
	}

	columns, err := validateHeader(records[0], expected)
	if err != nil {
		return nil, nil, fmt.Errorf("%s CSV header mismatch: %w", kind, err)
	}
	return records[1:], columns, nil
}

func validateHeader(actual, expected []string) (map[string]int, error) {
	columns := make(map[string]int, len(actual))
	for i, col := range actual {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}

	var missing []string
	for _, col := range expected {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

// field returns a lookup of a record's cells by column name
func field(record []string, columns map[string]int) func(string) string {
	return func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
}

func parseMaterial(get func(string) string) (MaterialRow, error) {
	row := MaterialRow{
		Code:        strings.ToUpper(get("code")),
		Name:        get("name"),
		Category:    entities.MaterialCategory(strings.ToUpper(get("category"))),
		Unit:        get("unit"),
		Description: get("description"),
	}
	if row.Name == "" {
		return MaterialRow{}, errors.New("name is required")
	}
	if row.Unit == "" {
		return MaterialRow{}, errors.New("unit is required")
	}
	if row.Category == "" {
		row.Category = entities.CategoryOther
	}
	if !row.Category.IsValid() {
		return MaterialRow{}, fmt.Errorf("invalid category: %s", row.Category)
	}

	var err error
	if row.UnitPrice, err = parseDecimal(get, "unit_price"); err != nil {
		return MaterialRow{}, err
	}
	if row.MinStock, err = parseDecimal(get, "min_stock"); err != nil {
		return MaterialRow{}, err
	}
	if row.MaxStock, err = parseDecimal(get, "max_stock"); err != nil {
		return MaterialRow{}, err
	}
	if row.ReorderPoint, err = parseDecimal(get, "reorder_point"); err != nil {
		return MaterialRow{}, err
	}
	return row, nil
}

func parseBOQ(get func(string) string) (BOQRow, error) {
	row := BOQRow{
		MaterialCode: strings.ToUpper(get("material_code")),
		Description:  get("description"),
		Category:     get("category"),
		Unit:         get("unit"),
	}
	if row.MaterialCode == "" {
		return BOQRow{}, errors.New("material_code is required")
	}

	var err error
	if row.PlannedQty, err = parseDecimal(get, "planned_qty"); err != nil {
		return BOQRow{}, err
	}
	if !row.PlannedQty.IsPositive() {
		return BOQRow{}, fmt.Errorf("planned_qty must be positive, got %s", row.PlannedQty)
	}
	if row.UnitRate, err = parseDecimal(get, "unit_rate"); err != nil {
		return BOQRow{}, err
	}
	return row, nil
}

// parseDecimal reads a non-negative number; an empty cell is zero
func parseDecimal(get func(string) string, column string) (decimal.Decimal, error) {
	raw := get(column)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", column, raw)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative: %s", column, raw)
	}
	return v, nil
}
