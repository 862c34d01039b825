package config

import (
	_ "embed"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed weights.yaml
var weightsYAML []byte

// MultiFacePolicy controls what happens when an image contains more than one face.
type MultiFacePolicy string

const (
	// MultiFaceReject rejects the image outright.
	MultiFaceReject MultiFacePolicy = "reject"
	// MultiFacePickBest continues with the highest-quality face.
	MultiFacePickBest MultiFacePolicy = "pick-best"
)

type Config struct {
	Extractor ExtractorConfig
	Index     IndexConfig
	Match     MatchConfig
	Cache     CacheConfig
	Pools     PoolConfig
	Quality   QualityConfig
}

type ExtractorConfig struct {
	URL       string        // embedding service base URL (default http://localhost:8000)
	Model     string        // model name, informational only
	Dim       int           // embedding dimension (default 512)
	InputSize int           // canonical model input edge in pixels (default 160)
	Timeout   time.Duration // per-call timeout
}

type IndexConfig struct {
	Backend      string        // "memory" or "postgres"
	DatabaseURL  string        // PostgreSQL connection URL (postgres backend)
	MaxOpenConns int           // maximum open connections (default 25)
	MaxIdleConns int           // maximum idle connections (default 5)
	Timeout      time.Duration // per-query timeout
}

type MatchConfig struct {
	Threshold       float64         // minimum cosine similarity to accept a match (default 0.6)
	TopK            int             // candidates fetched per query (default 5)
	MultiFacePolicy MultiFacePolicy // reject or pick-best
}

type CacheConfig struct {
	Capacity int // maximum cached images (default 1024)
}

type PoolConfig struct {
	CPUWorkers int // workers for decode/quality/preprocess (default NumCPU)
	IOWorkers  int // workers for extractor and index calls (default 2*NumCPU)
}

type QualityConfig struct {
	Floor   float64 // minimum acceptable quality score (default 0.3)
	Weights Weights
}

// Weights combines the quality gate component scores. They are expected to
// sum to 1; Load normalizes them if they do not.
type Weights struct {
	Focus      float64 `yaml:"focus"`
	Brightness float64 `yaml:"brightness"`
	Contrast   float64 `yaml:"contrast"`
}

type weightsFile struct {
	Weights Weights `yaml:"weights"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var wf weightsFile
	if err := yaml.Unmarshal(weightsYAML, &wf); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded weights.yaml: " + err.Error())
	}

	policy := MultiFacePolicy(envString("FACE_MULTI_POLICY", string(MultiFaceReject)))
	if policy != MultiFaceReject && policy != MultiFacePickBest {
		policy = MultiFaceReject
	}

	return &Config{
		Extractor: ExtractorConfig{
			URL:       envString("EXTRACTOR_URL", "http://localhost:8000"),
			Model:     envString("EXTRACTOR_MODEL", "facenet512"),
			Dim:       envInt("EMBEDDING_DIM", 512),
			InputSize: envInt("EXTRACTOR_INPUT_SIZE", 160),
			Timeout:   time.Duration(envInt("EXTRACTOR_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Index: IndexConfig{
			Backend:      envString("INDEX_BACKEND", "memory"),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			Timeout:      time.Duration(envInt("INDEX_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Match: MatchConfig{
			Threshold:       envFloat("MATCH_THRESHOLD", 0.6),
			TopK:            envInt("MATCH_TOP_K", 5),
			MultiFacePolicy: policy,
		},
		Cache: CacheConfig{
			Capacity: envInt("CACHE_CAPACITY", 1024),
		},
		Pools: PoolConfig{
			CPUWorkers: envInt("CPU_WORKERS", runtime.NumCPU()),
			IOWorkers:  envInt("IO_WORKERS", 2*runtime.NumCPU()),
		},
		Quality: QualityConfig{
			Floor:   envFloat("QUALITY_FLOOR", 0.3),
			Weights: wf.Weights.normalized(),
		},
	}
}

// normalized scales the weights so they sum to 1.
func (w Weights) normalized() Weights {
	sum := w.Focus + w.Brightness + w.Contrast
	if sum <= 0 {
		return Weights{Focus: 0.5, Brightness: 0.3, Contrast: 0.2}
	}
	return Weights{
		Focus:      w.Focus / sum,
		Brightness: w.Brightness / sum,
		Contrast:   w.Contrast / sum,
	}
}
