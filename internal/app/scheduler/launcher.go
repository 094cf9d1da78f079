package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/gosimple/slug"
)

// LauncherConfig is the fixed environment every runner receives.
type LauncherConfig struct {
	Binary             string
	RedisAddr          string
	BackendInternalURL string
	ResultToken        string
	LLMAPIKey          string
	LLMModel           string
	LLMBaseURL         string
	// LaunchDeadline is the hard cap on a runner process, enforced here. It
	// is deliberately longer than the runner's own wall-clock deadline so the
	// runner can still deliver a TIMEOUT outcome before being killed.
	LaunchDeadline time.Duration
	RunnerDeadline time.Duration
}

// ProcessLauncher admits runners as local child processes, one per
// submission, mirroring an ephemeral job substrate. Launch returns once the
// process has started; a start failure is an admission failure.
type ProcessLauncher struct {
	cfg LauncherConfig
}

func NewProcessLauncher(cfg LauncherConfig) *ProcessLauncher {
	return &ProcessLauncher{cfg: cfg}
}

func (l *ProcessLauncher) Launch(ctx context.Context, spec RunnerSpec) error {
	jobName := "runner-" + slug.Make(spec.SubmissionID)
	if len(jobName) > 63 {
		jobName = jobName[:63]
	}

	runCtx, cancel := context.WithTimeout(context.Background(), l.cfg.LaunchDeadline)
	cmd := exec.CommandContext(runCtx, l.cfg.Binary)
	cmd.Env = append(os.Environ(),
		"SUBMISSION_ID="+spec.SubmissionID,
		"REDIS_ADDR="+l.cfg.RedisAddr,
		"BACKEND_INTERNAL_URL="+l.cfg.BackendInternalURL,
		"INTERNAL_RESULT_TOKEN="+l.cfg.ResultToken,
		"LLM_API_KEY="+l.cfg.LLMAPIKey,
		"LLM_MODEL="+l.cfg.LLMModel,
		"LLM_BASE_URL="+l.cfg.LLMBaseURL,
		fmt.Sprintf("RUNNER_DEADLINE_SECONDS=%d", int(l.cfg.RunnerDeadline.Seconds())),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start runner %s: %w", jobName, err)
	}
	log.Printf("Runner %s started (pid %d).", jobName, cmd.Process.Pid)

	// Reap in the background. Runners exit 0 even after internal failures,
	// so a non-zero exit here means the substrate killed it or it crashed
	// before its own top-level handler could run.
	go func() {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			log.Printf("WARN: Runner %s exited abnormally: %v", jobName, err)
		}
	}()
	return nil
}
