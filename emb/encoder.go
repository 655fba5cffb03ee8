// Package emb runs a pretrained protein language model through ONNX Runtime and
// turns a residue sequence into one pooled signature vector.
package emb

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// DefaultMaxSeqLen is the token budget of the ESM-2 family, special tokens included.
const DefaultMaxSeqLen = 1024

// Config describes where the runtime library, model and tokenizer live.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
}

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 && !ort.IsInitialized() {
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// Encoder owns one ORT session and its tokenizer. Encode is guarded by a mutex;
// callers that need a global ordering must serialize above this type.
type Encoder struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	tokenizer Tokenizer
	inputs    []string
	output    string
	maxSeqLen int
	hidden    int
	envHeld   bool
}

// Init loads the runtime, tokenizer and model session.
func (e *Encoder) Init(cfg Config) error {
	if cfg.ModelPath == "" {
		return errors.New("model path is required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = DefaultMaxSeqLen
	}
	if cfg.MaxSeqLen < 3 {
		return fmt.Errorf("max sequence length %d leaves no room for residues", cfg.MaxSeqLen)
	}
	tok, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	if err := acquireEnvironment(cfg.OrtDLL); err != nil {
		return err
	}
	e.envHeld = true

	inInfo, outInfo, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		e.Close()
		return fmt.Errorf("inspect model: %w", err)
	}
	inputs, err := selectInputs(inInfo)
	if err != nil {
		e.Close()
		return err
	}
	output, hidden, err := selectOutput(outInfo)
	if err != nil {
		e.Close()
		return err
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, []string{output}, nil)
	if err != nil {
		e.Close()
		return fmt.Errorf("create session: %w", err)
	}
	e.session = session
	e.tokenizer = tok
	e.inputs = inputs
	e.output = output
	e.maxSeqLen = cfg.MaxSeqLen
	e.hidden = hidden
	return nil
}

// Dim reports the hidden size when the model declares it statically, 0 otherwise.
func (e *Encoder) Dim() int {
	return e.hidden
}

// MaxSeqLen returns the effective token budget.
func (e *Encoder) MaxSeqLen() int {
	return e.maxSeqLen
}

// Encode tokenizes seq, runs the model and mean-pools the last hidden state.
func (e *Encoder) Encode(seq string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("encoder is not initialized")
	}
	ids, mask, err := e.tokenizer.Encode(seq, e.maxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	shape := ort.NewShape(1, int64(len(ids)))
	values := make([]ort.Value, 0, len(e.inputs))
	defer func() {
		for _, v := range values {
			_ = v.Destroy()
		}
	}()
	for _, name := range e.inputs {
		var data []int64
		switch name {
		case "input_ids":
			data = ids
		case "attention_mask":
			data = mask
		default:
			data = make([]int64, len(ids))
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		values = append(values, t)
	}
	outputs := []ort.Value{nil}
	if err := e.session.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()
	hiddenState, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output %s is not a float32 tensor", e.output)
	}
	dims := hiddenState.GetShape()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	return MeanPool(hiddenState.GetData(), int(dims[1]), int(dims[2]))
}

// Close destroys the session and releases the shared runtime environment.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	if e.envHeld {
		releaseEnvironment()
		e.envHeld = false
	}
}

func selectInputs(info []ort.InputOutputInfo) ([]string, error) {
	known := map[string]bool{"input_ids": true, "attention_mask": true, "token_type_ids": true}
	names := make([]string, 0, len(info))
	hasIDs := false
	for _, in := range info {
		if !known[in.Name] {
			return nil, fmt.Errorf("model input %q is not supported", in.Name)
		}
		if in.Name == "input_ids" {
			hasIDs = true
		}
		names = append(names, in.Name)
	}
	if !hasIDs {
		return nil, errors.New("model has no input_ids input")
	}
	return names, nil
}

func selectOutput(info []ort.InputOutputInfo) (string, int, error) {
	if len(info) == 0 {
		return "", 0, errors.New("model declares no outputs")
	}
	pick := info[0]
	for _, out := range info {
		if out.Name == "last_hidden_state" {
			pick = out
			break
		}
	}
	hidden := 0
	if len(pick.Dimensions) == 3 && pick.Dimensions[2] > 0 {
		hidden = int(pick.Dimensions[2])
	}
	return pick.Name, hidden, nil
}
