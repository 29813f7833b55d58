package association

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"loostaar/domain/genotype"
	"loostaar/internal"
	"loostaar/ports"
)

// RscriptTest runs an R script (typically a STAAR wrapper) once per call:
//
//	Rscript <script> <request.json> <response.json>
//
// The null model handle is the path of a fitted model the script can load.
type RscriptTest struct {
	rscript string
	script  string
	workDir string
	logger  *internal.Logger
}

// NewRscriptTest creates an Rscript-backed association test
func NewRscriptTest(rscript, script, workDir string) *RscriptTest {
	if rscript == "" {
		rscript = "Rscript"
	}
	return &RscriptTest{
		rscript: rscript,
		script:  script,
		workDir: workDir,
		logger:  internal.DefaultLogger.With("rscript"),
	}
}

func (t *RscriptTest) Name() string { return "rscript" }

func (t *RscriptTest) Test(ctx context.Context, m *genotype.Matrix, model ports.NullModel, params ports.TestParams) (*ports.TestResult, error) {
	dir, err := os.MkdirTemp(t.workDir, "loo-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	reqPath := filepath.Join(dir, "request.json")
	respPath := filepath.Join(dir, "response.json")

	raw, err := json.Marshal(newRequest(m, model, params))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := os.WriteFile(reqPath, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.rscript, t.script, reqPath, respPath)
	cmd.Stderr = &stderr
	t.logger.Trace("running %s %s on %d variants", t.rscript, t.script, m.NumVariants())
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w: %s", t.rscript, filepath.Base(t.script), err, lastLine(stderr.String()))
	}

	out, err := os.ReadFile(respPath)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.result()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
