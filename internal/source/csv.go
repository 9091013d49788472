package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"salesforecast/internal/aggregate"
)

// CSVSource reads transactions from a delimited text file with a header row.
// Comma and semicolon delimiters are detected from the header.
type CSVSource struct {
	path   string
	logger *slog.Logger
}

// NewCSVSource creates a CSV source for path
func NewCSVSource(path string, logger *slog.Logger) *CSVSource {
	return &CSVSource{path: path, logger: logger}
}

// Name implements TransactionSource
func (s *CSVSource) Name() string { return "csv" }

// Close implements TransactionSource
func (s *CSVSource) Close() error { return nil }

// Transactions implements TransactionSource
func (s *CSVSource) Transactions(ctx context.Context) ([]aggregate.Transaction, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	txs, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	s.logger.InfoContext(ctx, "transactions loaded",
		slog.String("source", s.Name()),
		slog.String("path", s.path),
		slog.Int("rows", len(txs)))
	return txs, nil
}

// ReadCSV decodes transactions from r
func ReadCSV(ctx context.Context, r io.Reader) ([]aggregate.Transaction, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	reader.Comma = detectDelimiter(first)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	decoder, err := newRowDecoder(header)
	if err != nil {
		return nil, err
	}

	var txs []aggregate.Transaction
	for line := 2; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blankRow(record) {
			continue
		}
		txs = append(txs, decoder.decode(record))
	}
	return txs, nil
}

func detectDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}
