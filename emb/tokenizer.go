package emb

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer converts a residue sequence into model input ids and an attention mask,
// truncated to maxLen tokens including special tokens.
type Tokenizer interface {
	Encode(seq string, maxLen int) (ids []int64, mask []int64, err error)
}

// esmVocab is the ESM-2 vocabulary in id order.
var esmVocab = []string{
	"<cls>", "<pad>", "<eos>", "<unk>",
	"L", "A", "G", "V", "S", "E", "R", "T", "I", "D", "P", "K", "Q", "N",
	"F", "Y", "M", "H", "W", "C", "X", "B", "U", "Z", "O", ".", "-",
	"<null_1>", "<mask>",
}

// LoadTokenizer picks an implementation from the file extension:
// ".json" is a Hugging Face tokenizer.json, anything else is a one-token-per-line
// vocab.txt, and an empty path selects the built-in ESM-2 vocabulary.
func LoadTokenizer(path string) (Tokenizer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewResidueTokenizer(esmVocab)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		tk, err := pretrained.FromFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return &hfTokenizer{tk: tk}, nil
	}
	vocab, err := readVocab(path)
	if err != nil {
		return nil, err
	}
	return NewResidueTokenizer(vocab)
}

func readVocab(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	var vocab []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		vocab = append(vocab, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	return vocab, nil
}

// ResidueTokenizer maps one residue letter to one token and wraps the sequence
// in <cls> ... <eos>, the way ESM models are trained.
type ResidueTokenizer struct {
	ids map[rune]int64
	cls int64
	eos int64
	unk int64
}

// NewResidueTokenizer builds a tokenizer from a vocabulary listed in id order.
func NewResidueTokenizer(vocab []string) (*ResidueTokenizer, error) {
	t := &ResidueTokenizer{ids: make(map[rune]int64, len(vocab)), cls: -1, eos: -1, unk: -1}
	for i, tok := range vocab {
		switch tok {
		case "<cls>":
			t.cls = int64(i)
		case "<eos>":
			t.eos = int64(i)
		case "<unk>":
			t.unk = int64(i)
		default:
			r := []rune(tok)
			if len(r) == 1 {
				t.ids[r[0]] = int64(i)
			}
		}
	}
	if t.cls < 0 || t.eos < 0 || t.unk < 0 {
		return nil, errors.New("vocabulary must define <cls>, <eos> and <unk>")
	}
	return t, nil
}

// Encode implements Tokenizer. Residues beyond maxLen-2 are dropped.
func (t *ResidueTokenizer) Encode(seq string, maxLen int) ([]int64, []int64, error) {
	if seq == "" {
		return nil, nil, errors.New("empty sequence")
	}
	if maxLen < 3 {
		return nil, nil, fmt.Errorf("max length %d is too small", maxLen)
	}
	residues := []rune(seq)
	if len(residues) > maxLen-2 {
		residues = residues[:maxLen-2]
	}
	ids := make([]int64, 0, len(residues)+2)
	ids = append(ids, t.cls)
	for _, r := range residues {
		id, ok := t.ids[r]
		if !ok {
			id = t.unk
		}
		ids = append(ids, id)
	}
	ids = append(ids, t.eos)
	return ids, onesLike(ids), nil
}

type hfTokenizer struct {
	tk *tokenizer.Tokenizer
}

func (h *hfTokenizer) Encode(seq string, maxLen int) ([]int64, []int64, error) {
	if seq == "" {
		return nil, nil, errors.New("empty sequence")
	}
	en, err := h.tk.EncodeSingle(seq, true)
	if err != nil {
		return nil, nil, err
	}
	raw := en.Ids
	if len(raw) == 0 {
		return nil, nil, errors.New("tokenizer produced no tokens")
	}
	if maxLen > 1 && len(raw) > maxLen {
		// keep the closing special token
		last := raw[len(raw)-1]
		raw = append(raw[:maxLen-1:maxLen-1], last)
	}
	ids := make([]int64, len(raw))
	for i, id := range raw {
		ids[i] = int64(id)
	}
	return ids, onesLike(ids), nil
}

func onesLike(ids []int64) []int64 {
	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return mask
}
