package bioscan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FASTARecord is one '>'-headed record with its raw sequence lines joined.
type FASTARecord struct {
	Header   string
	Sequence string
}

// SequenceFileExtensions lists the extensions offered when opening query or receptor files.
var SequenceFileExtensions = []string{".fasta", ".fa", ".faa", ".txt"}

// ReadSequenceFile returns the raw contents of a query file. Header stripping and
// cleaning happen later in NormalizeSequence.
func ReadSequenceFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

// ParseFASTA splits multi-record FASTA text. Content before the first header is an error.
func ParseFASTA(r io.Reader) ([]FASTARecord, error) {
	var (
		out     []FASTARecord
		current *FASTARecord
		body    strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Sequence = body.String()
			out = append(out, *current)
		}
		body.Reset()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimPrefix(line, "\ufeff")
		if strings.HasPrefix(line, ">") {
			flush()
			current = &FASTARecord{Header: strings.TrimSpace(line[1:])}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: sequence data before first '>' header", lineNo)
		}
		body.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan fasta: %w", err)
	}
	flush()
	if len(out) == 0 {
		return nil, errors.New("no FASTA records found")
	}
	return out, nil
}

// LoadReceptorFile reads a FASTA file whose headers name the receptors.
func LoadReceptorFile(path string) ([]ReceptorEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	records, err := ParseFASTA(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	entries := make([]ReceptorEntry, len(records))
	for i, rec := range records {
		entries[i] = ReceptorEntry{Name: rec.Header, Sequence: rec.Sequence}
	}
	return entries, nil
}
