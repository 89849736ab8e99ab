// Package llmproc invokes the llama.cpp CLI as an external subprocess
// sidecar: the LLM runtime itself is treated as an external collaborator,
// consuming a prompt and emitting text. Grounded on the Python
// prototype's llm/llama_cpp_runtime.py: same argv shape, same
// binary/model discovery order, same per-call timeout contract.
package llmproc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// Params controls one generation call's sampling behavior, mirroring
// llama_cpp_runtime.py's LlamaParams.
type Params struct {
	Temperature    float64
	TopP           float64
	TopK           int
	RepeatPenalty  float64
	Seed           int
	Ctx            int
	NPredict       int
	Threads        int // 0 means "use runtime.NumCPU()"
	Batch          int // 0 means "omit --batch-size"
	Stop           []string
	TimeoutSeconds int

	// Backend pins GPU offload backend selection ("cpu", "cuda", "metal");
	// empty means auto-detect from the binary's --help text.
	Backend    string
	NGPULayers int
}

// isZero reports whether p still has every scalar field at its Go zero
// value, i.e. the caller never set anything and DefaultParams should fill
// in instead.
func (p Params) isZero() bool {
	return p.Temperature == 0 && p.TopP == 0 && p.TopK == 0 && p.RepeatPenalty == 0 &&
		p.Seed == 0 && p.Ctx == 0 && p.NPredict == 0 && p.TimeoutSeconds == 0
}

// DefaultParams mirrors LlamaParams' dataclass defaults.
func DefaultParams() Params {
	return Params{
		Temperature:    0.1,
		TopP:           0.95,
		TopK:           40,
		RepeatPenalty:  1.1,
		Seed:           42,
		Ctx:            4096,
		NPredict:       256,
		TimeoutSeconds: 120,
	}
}

// Runtime invokes a llama.cpp CLI binary against a GGUF model.
type Runtime struct {
	BinPath   string
	ModelPath string
	Params    Params

	// BackendSelected records the GPU backend actually used by the most
	// recent Generate call ("cpu", "cuda", "metal"); set after a GPU-layer
	// retry-fallback so callers can observe that a build rejected
	// --n-gpu-layers and CPU inference was used instead.
	BackendSelected string
}

func defaultThreads() int {
	n := runtime.NumCPU()
	if n <= 0 {
		return 4
	}
	return n
}

func buildArgs(binPath, modelPath, prompt string, p Params, withGPULayers bool) []string {
	threads := p.Threads
	if threads <= 0 {
		threads = defaultThreads()
	}
	args := []string{
		binPath,
		"-m", modelPath,
		"-p", prompt,
		"-n", strconv.Itoa(p.NPredict),
		"-c", strconv.Itoa(p.Ctx),
		"-t", strconv.Itoa(threads),
		"--temp", strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		"--top-p", strconv.FormatFloat(p.TopP, 'f', -1, 64),
		"--top-k", strconv.Itoa(p.TopK),
		"--repeat-penalty", strconv.FormatFloat(p.RepeatPenalty, 'f', -1, 64),
		"--seed", strconv.Itoa(p.Seed),
	}
	if p.Batch > 0 {
		args = append(args, "--batch-size", strconv.Itoa(p.Batch))
	}
	if withGPULayers && p.NGPULayers > 0 {
		args = append(args, "--n-gpu-layers", strconv.Itoa(p.NGPULayers))
	}
	for _, s := range p.Stop {
		if s != "" {
			args = append(args, "--stop", s)
		}
	}
	args = append(args, "--no-display-prompt", "--silent")
	return args
}

// Generate runs the CLI once against prompt and returns its trimmed
// stdout. A non-zero exit produces a Transient error carrying stderr (or
// stdout if stderr is empty); hitting the deadline produces a Timeout
// error. Neither returns a partial result: expiry is an error.
func (r *Runtime) Generate(ctx context.Context, prompt string) (string, error) {
	if _, err := os.Stat(r.BinPath); err != nil {
		return "", errs.Wrapf(errs.KindState, err, "llama.cpp binary not found: %s", r.BinPath)
	}
	if _, err := os.Stat(r.ModelPath); err != nil {
		return "", errs.Wrapf(errs.KindState, err, "GGUF model not found: %s", r.ModelPath)
	}

	p := r.Params
	if p.isZero() {
		p = DefaultParams()
	}
	timeout := p.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultParams().TimeoutSeconds
	}

	backend := p.Backend
	if backend == "" {
		backend = detectBackend(r.BinPath)
	}
	useGPULayers := backend != "cpu" && p.NGPULayers > 0

	out, runErr := r.run(ctx, prompt, p, timeout, useGPULayers)
	if runErr != nil && useGPULayers {
		// Some CPU-only builds reject --n-gpu-layers outright; retry once
		// without it before giving up.
		out, runErr = r.run(ctx, prompt, p, timeout, false)
		if runErr == nil {
			backend = "cpu"
		}
	}
	if runErr != nil {
		return "", runErr
	}
	r.BackendSelected = backend
	return out, nil
}

func (r *Runtime) run(ctx context.Context, prompt string, p Params, timeoutSec int, withGPULayers bool) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	args := buildArgs(r.BinPath, r.ModelPath, prompt, p, withGPULayers)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", errs.Newf(errs.KindTimeout, "llama.cpp timeout after %ds", timeoutSec)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		if len(msg) > 4000 {
			msg = msg[:4000]
		}
		return "", errs.Newf(errs.KindTransient, "llama.cpp failed: %s", msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// FindBin resolves the llama.cpp CLI executable: env override first,
// then data_dir/bin and app_dir/bin for each of llama-cli then main
// (mirroring find_llama_bin's priority order).
func FindBin(appDir, dataDir string) (string, error) {
	if env := strings.TrimSpace(os.Getenv("LEX_LLAMA_BIN")); env != "" {
		return env, nil
	}

	names := []string{"llama-cli", "main"}
	ext := ""
	if isWindows() {
		ext = ".exe"
	}
	for _, base := range names {
		for _, root := range []string{filepath.Join(dataDir, "bin"), filepath.Join(appDir, "bin")} {
			p := filepath.Join(root, base+ext)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", errs.New(errs.KindState, "llama.cpp binary not found. Set LEX_LLAMA_BIN to the full path of llama-cli/main.")
}

// FindModel resolves the GGUF model path: env override first, else
// exactly one *.gguf file in modelDir (mirroring find_gguf_model).
func FindModel(modelDir string) (string, error) {
	if env := strings.TrimSpace(os.Getenv("LEX_MODEL_GGUF")); env != "" {
		return env, nil
	}

	matches, err := filepath.Glob(filepath.Join(modelDir, "*.gguf"))
	if err != nil {
		return "", errs.Wrapf(errs.KindTransient, err, "glob gguf models in %s", modelDir)
	}
	sort.Strings(matches)
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", errs.Newf(errs.KindState, "GGUF model not found. Set LEX_MODEL_GGUF or place exactly one .gguf in %s.", modelDir)
}

func isWindows() bool { return os.PathSeparator == '\\' }
