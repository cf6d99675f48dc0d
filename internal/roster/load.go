package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// LoadParentsCSV reads a parent roster export. One row per parent-child link;
// parents appearing on several rows are merged into one record with multiple
// children.
func LoadParentsCSV(r io.Reader) ([]models.Parent, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	rows, err := parentRowsFromRecords(records)
	if err != nil {
		return nil, err
	}
	return buildParents(rows)
}

// LoadStaffCSV reads a staff directory export.
func LoadStaffCSV(r io.Reader) ([]models.Staff, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return staffFromRecords(records)
}

// LoadParentsXLSX reads the parent roster from the first sheet of a workbook.
func LoadParentsXLSX(r io.Reader) ([]models.Parent, error) {
	records, err := readXLSX(r)
	if err != nil {
		return nil, err
	}
	rows, err := parentRowsFromRecords(records)
	if err != nil {
		return nil, err
	}
	return buildParents(rows)
}

// LoadStaffXLSX reads the staff directory from the first sheet of a workbook.
func LoadStaffXLSX(r io.Reader) ([]models.Staff, error) {
	records, err := readXLSX(r)
	if err != nil {
		return nil, err
	}
	return staffFromRecords(records)
}

// LoadParentsFile dispatches on the file extension.
func LoadParentsFile(name string, r io.Reader) ([]models.Parent, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return LoadParentsXLSX(r)
	}
	return LoadParentsCSV(r)
}

// LoadStaffFile dispatches on the file extension.
func LoadStaffFile(name string, r io.Reader) ([]models.Staff, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return LoadStaffXLSX(r)
	}
	return LoadStaffCSV(r)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster csv: %w", err)
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster workbook: %w", err)
	}
	defer wb.Close()
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("roster workbook has no sheets")
	}
	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return records, nil
}

func parentRowsFromRecords(records [][]string) ([]parentRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}
	cols, err := mapHeader(records[0], parentColumns)
	if err != nil {
		return nil, fmt.Errorf("parent roster: %w", err)
	}
	rows := make([]parentRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, parentRow{
			ParentName:       cellAt(record, cols["parent name"]),
			Email:            cellAt(record, cols["parent email"]),
			Phone:            cellAt(record, cols["parent phone"]),
			Relationship:     cellAt(record, cols["relationship"]),
			StudentFirstName: cellAt(record, cols["student first name"]),
			StudentLastName:  cellAt(record, cols["student last name"]),
			TutorGroup:       cellAt(record, cols["tutor group"]),
		})
	}
	return rows, nil
}

func staffFromRecords(records [][]string) ([]models.Staff, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("staff list is empty")
	}
	cols, err := mapHeader(records[0], staffColumns)
	if err != nil {
		return nil, fmt.Errorf("staff list: %w", err)
	}
	staff := make([]models.Staff, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		email := strings.TrimSpace(cellAt(record, cols["email"]))
		if email == "" {
			return nil, fmt.Errorf("staff list row %d: email is required", i+2)
		}
		staff = append(staff, models.Staff{
			Email:     email,
			Title:     strings.TrimSpace(cellAt(record, cols["title"])),
			FirstName: strings.TrimSpace(cellAt(record, cols["first name"])),
			LastName:  strings.TrimSpace(cellAt(record, cols["last name"])),
		})
	}
	return staff, nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
