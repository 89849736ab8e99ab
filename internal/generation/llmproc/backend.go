package llmproc

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// detectBackend best-effort probes a llama.cpp CLI build by scanning its
// --help text for known GPU backend markers. LEX_LLAMA_BACKEND
// overrides detection entirely. Unrecognized or unreadable output falls
// back to "cpu".
func detectBackend(binPath string) string {
	if env := strings.TrimSpace(os.Getenv("LEX_LLAMA_BACKEND")); env != "" {
		return env
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binPath, "--help")
	out, _ := cmd.CombinedOutput()
	text := strings.ToLower(string(out))

	switch {
	case strings.Contains(text, "cublas") || strings.Contains(text, "cuda"):
		return "cuda"
	case strings.Contains(text, "metal"):
		return "metal"
	default:
		return "cpu"
	}
}
