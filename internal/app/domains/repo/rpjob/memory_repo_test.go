package rpjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mca/agentd/internal/app/domains/entity/etjob"
	"mca/agentd/internal/app/pkg/errorx"
)

func newRepoJob(t *testing.T, id string) *etjob.Job {
	t.Helper()
	job, err := etjob.NewJob(id, "12345671234567", map[string]string{"topic": "x"},
		"hash", "chain-"+id, time.Now().Add(5*time.Minute), time.Now().Add(20*time.Minute))
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	return job
}

func TestMemoryRepoCreateAndGet(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	job := newRepoJob(t, "j1")

	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, job); !errors.Is(err, errorx.ErrJobExists) {
		t.Errorf("duplicate create should return ErrJobExists, got %v", err)
	}

	got, err := repo.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "j1" || got.Status != etjob.JobStatusAwaitingPayment {
		t.Errorf("unexpected job: %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, errorx.ErrJobNotFound) {
		t.Errorf("missing job should return ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepoUpdateRejectedMutationDiscarded(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, newRepoJob(t, "j1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	boom := errors.New("mutate failed")
	if _, err := repo.Update(ctx, "j1", func(j *etjob.Job) error {
		j.Status = etjob.JobStatusRunning
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Update should propagate mutator error, got %v", err)
	}

	got, err := repo.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != etjob.JobStatusAwaitingPayment {
		t.Errorf("rejected mutation leaked into store: %s", got.Status)
	}
}

func TestMemoryRepoGetReturnsIsolatedCopy(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, newRepoJob(t, "j1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, _ := repo.Get(ctx, "j1")
	got.Input["topic"] = "tampered"
	got.Status = etjob.JobStatusDone

	fresh, _ := repo.Get(ctx, "j1")
	if fresh.Input["topic"] != "x" || fresh.Status != etjob.JobStatusAwaitingPayment {
		t.Errorf("caller mutation leaked into store: %+v", fresh)
	}
}

// 并发读写下读方永远看到完整记录：done 必有结果，awaiting_payment 必无结果
func TestMemoryRepoConcurrentReadsNeverTorn(t *testing.T) {
	repo := NewMemoryJobRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, newRepoJob(t, "j1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.Get(ctx, "j1")
			if err != nil {
				errCh <- err
				return
			}
			switch got.Status {
			case etjob.JobStatusDone:
				if got.Result == nil {
					errCh <- fmt.Errorf("done job without result")
				}
			case etjob.JobStatusAwaitingPayment, etjob.JobStatusRunning:
				if got.Result != nil {
					errCh <- fmt.Errorf("non-terminal job with result")
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := repo.Update(ctx, "j1", func(j *etjob.Job) error {
			return j.MarkRunning()
		}); err != nil {
			errCh <- err
			return
		}
		if _, err := repo.Update(ctx, "j1", func(j *etjob.Job) error {
			return j.MarkDone(&etjob.Result{PostBody: "done"}, nil)
		}); err != nil {
			errCh <- err
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("invariant violated: %v", err)
	}
}
