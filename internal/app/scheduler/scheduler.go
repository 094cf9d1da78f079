package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"codegrade/internal/domain/model"
	"codegrade/internal/platform/queue"
)

// Queue is the scheduler's view of the dispatch queue: a bounded blocking
// pop that returns queue.ErrEmpty on an idle timeout.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

// Launcher admits one ephemeral runner for a dispatch message.
type Launcher interface {
	Launch(ctx context.Context, spec RunnerSpec) error
}

// RunnerSpec carries what a runner needs beyond its fixed environment.
type RunnerSpec struct {
	SubmissionID string
	Language     string
}

// Scheduler is a single blocking loop. Multiple instances may run
// concurrently; the queue delivers each message to exactly one of them.
type Scheduler struct {
	queue      Queue
	launcher   Launcher
	popTimeout time.Duration
}

func New(q Queue, launcher Launcher) *Scheduler {
	return &Scheduler{
		queue:      q,
		launcher:   launcher,
		popTimeout: 5 * time.Second,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	log.Println("Scheduler started, listening for dispatch messages.")
	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopping...")
			return
		default:
			raw, err := s.queue.Pop(ctx, s.popTimeout)
			if err != nil {
				if errors.Is(err, queue.ErrEmpty) {
					// Idle poll, not an error.
					continue
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				log.Printf("ERROR: Failed to pop dispatch message: %v", err)
				time.Sleep(5 * time.Second) // Wait before retrying on other errors
				continue
			}
			s.handleMessage(ctx, raw)
		}
	}
}

// handleMessage parses one popped message and admits a runner for it. The
// queue already removed the message, so a malformed body or a failed
// admission is logged and dropped; the submission stays QUEUED with no
// built-in reaper.
func (s *Scheduler) handleMessage(ctx context.Context, raw string) {
	var msg model.DispatchMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		log.Printf("ERROR: Dropping unparseable dispatch message %q: %v", raw, err)
		return
	}
	if msg.Version != model.DispatchMessageVersion {
		log.Printf("ERROR: Dropping dispatch message with unsupported version %d: %q", msg.Version, raw)
		return
	}
	if msg.SubmissionID == "" {
		log.Printf("ERROR: Dropping dispatch message without submission_id: %q", raw)
		return
	}

	spec := RunnerSpec{SubmissionID: msg.SubmissionID, Language: msg.Language}
	if err := s.launcher.Launch(ctx, spec); err != nil {
		log.Printf("ERROR: Runner admission failed for submission %s; message dropped: %v", msg.SubmissionID, err)
		return
	}
	log.Printf("Runner admitted for submission %s.", msg.SubmissionID)
}
