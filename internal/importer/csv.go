package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"catalog-sync/internal/domain/model"
)

// Catalog files arrive with these exact headers, in any column order.
const (
	headerReference   = "REFERENCIA"
	headerDescription = "DESCRIPCION"
	headerType        = "TIPO"
	headerPrice       = "PRECIO"
	headerStock       = "STOCK"
)

// RowError is a rejected line kept for the import report.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ParseCatalog reads a catalog CSV, tolerating a UTF-8 BOM and sniffing the
// delimiter among ';', ',' and tab. Invalid rows are collected, not fatal;
// only a missing header or an unreadable stream fails the parse.
func ParseCatalog(r io.Reader) ([]model.CatalogRow, []RowError, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("catalog read: %w", err)
	}
	head = stripBOM(head)
	if b, _ := br.Peek(3); len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(head)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("catalog header: %w", err)
	}
	cols, err := headerColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows     []model.CatalogRow
		rejected []RowError
		line     = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rejected = append(rejected, RowError{Line: line, Message: err.Error()})
			continue
		}
		row, err := parseRecord(record, cols)
		if err != nil {
			rejected = append(rejected, RowError{Line: line, Message: err.Error()})
			continue
		}
		rows = append(rows, row)
	}
	return rows, rejected, nil
}

type columnIndex struct {
	reference   int
	description int
	productType int
	price       int
	stock       int
}

func headerColumns(header []string) (columnIndex, error) {
	cols := columnIndex{reference: -1, description: -1, productType: -1, price: -1, stock: -1}
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case headerReference:
			cols.reference = i
		case headerDescription:
			cols.description = i
		case headerType:
			cols.productType = i
		case headerPrice:
			cols.price = i
		case headerStock:
			cols.stock = i
		}
	}
	if cols.reference < 0 || cols.price < 0 || cols.stock < 0 {
		return cols, fmt.Errorf("catalog header: need %s, %s and %s columns", headerReference, headerPrice, headerStock)
	}
	return cols, nil
}

func parseRecord(record []string, cols columnIndex) (model.CatalogRow, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := model.CatalogRow{
		Reference:   field(cols.reference),
		Description: field(cols.description),
		ProductType: field(cols.productType),
	}
	if row.Reference == "" {
		return row, errors.New("empty reference")
	}

	cost, err := parseDecimal(field(cols.price))
	if err != nil {
		return row, fmt.Errorf("price: %w", err)
	}
	if cost <= 0 {
		return row, fmt.Errorf("price must be positive, got %.2f", cost)
	}
	row.Cost = cost

	stockField := field(cols.stock)
	if stockField == "" {
		stockField = "0"
	}
	stock, err := strconv.Atoi(stockField)
	if err != nil {
		return row, fmt.Errorf("stock: %w", err)
	}
	if stock < 0 {
		return row, fmt.Errorf("stock must not be negative, got %d", stock)
	}
	row.Stock = stock

	return row, nil
}

// parseDecimal accepts both "12.50" and the comma decimal form "12,50".
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	return strconv.ParseFloat(s, 64)
}

func sniffDelimiter(head []byte) rune {
	firstLine := string(head)
	if idx := strings.IndexAny(firstLine, "\r\n"); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	best, bestCount := ';', strings.Count(firstLine, ";")
	if n := strings.Count(firstLine, ","); n > bestCount {
		best, bestCount = ',', n
	}
	if n := strings.Count(firstLine, "\t"); n > bestCount {
		best = '\t'
	}
	return best
}

func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
