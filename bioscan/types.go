package bioscan

import (
	"encoding/json"
	"time"
)

// ReceptorEntry is a named reference sequence held by the registry.
type ReceptorEntry struct {
	Name     string `json:"name"`
	Sequence string `json:"sequence"`
}

// Score is the similarity of the query to one receptor, as a percentage in [-100, 100].
type Score struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Selection picks the comparison targets of an analysis.
type Selection struct {
	All  bool   `json:"all"`
	Name string `json:"name,omitempty"`
}

// SelectAll compares against every registry entry.
func SelectAll() Selection {
	return Selection{All: true}
}

// SelectReceptor compares against a single named entry.
func SelectReceptor(name string) Selection {
	return Selection{Name: name}
}

func (s Selection) String() string {
	if s.All {
		return "all receptors"
	}
	return s.Name
}

// Result is a completed analysis.
type Result struct {
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	Selection   Selection     `json:"selection"`
	Scores      []Score       `json:"scores"`
	ModelID     string        `json:"modelId,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	CompletedAt time.Time     `json:"completedAt"`
}

// State is the orchestrator lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusEvent is published on every orchestrator transition.
type StatusEvent struct {
	JobID string
	State State
	Err   error
	At    time.Time
}

// EmbedderKind selects the signature provider implementation.
type EmbedderKind string

const (
	// EmbedderONNX runs the protein language model through ONNX Runtime.
	EmbedderONNX EmbedderKind = "onnx"
	// EmbedderComposition uses residue composition vectors; deterministic and model-free.
	EmbedderComposition EmbedderKind = "composition"
)

// EmbedderConfig wraps the configuration for the ORT embedder and its caches.
type EmbedderConfig struct {
	Kind          EmbedderKind `json:"kind"`
	OrtDLL        string       `json:"ortDll"`
	ModelPath     string       `json:"modelPath"`
	TokenizerPath string       `json:"tokenizerPath"`
	MaxSeqLen     int          `json:"maxSeqLen"`
	CacheDir      string       `json:"cacheDir"`
	CacheSize     int          `json:"cacheSize"`
	ModelID       string       `json:"modelId"`
}

// Config aggregates runtime settings persisted to config.json.
type Config struct {
	Embedder  EmbedderConfig `json:"embedder"`
	SeedsPath string         `json:"seedsPath"`
	LogLevel  string         `json:"logLevel"`
	ReportDir string         `json:"reportDir"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Embedder.Kind == "" {
		c.Embedder.Kind = EmbedderONNX
	}
	if c.Embedder.MaxSeqLen == 0 {
		c.Embedder.MaxSeqLen = 1024
	}
	if c.Embedder.CacheSize <= 0 {
		c.Embedder.CacheSize = 256
	}
	if c.Embedder.ModelPath == "" && c.Embedder.Kind == EmbedderONNX {
		c.Embedder.ModelPath = "./models/esm2_t6_8M_UR50D/model.onnx"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ReportDir == "" {
		c.ReportDir = "reports"
	}
}
