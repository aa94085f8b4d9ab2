package verify

import (
	"context"
	"sync"

	"affiliateprograms.wiki/internal/entity"
)

// Request is one URL to verify in a batch.
type Request struct {
	EntityKind entity.Kind `json:"entity_type"`
	EntityID   int64       `json:"entity_id"`
	URL        string      `json:"url"`
	URLType    URLType     `json:"url_type"`
}

// Summary counts batch outcomes by status.
type Summary struct {
	Verified int `json:"verified"`
	Success  int `json:"success"`
	Redirect int `json:"redirect"`
	Broken   int `json:"broken"`
	Timeout  int `json:"timeout"`
	Blocked  int `json:"blocked"`
}

// Recorder checks batches of URLs and persists every run.
type Recorder struct {
	checker *Checker
	store   Store
}

// NewRecorder ties a checker to a run store.
func NewRecorder(checker *Checker, store Store) *Recorder {
	return &Recorder{checker: checker, store: store}
}

// VerifyBatch checks all requests concurrently, records each run, and
// returns the runs in request order with a summary. Individual failures
// become runs with a failure status rather than aborting the batch.
func (r *Recorder) VerifyBatch(ctx context.Context, reqs []Request) ([]Run, Summary, error) {
	runs := make([]Run, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			kind := req.EntityKind
			if kind == "" {
				kind = entity.KindProgram
			}
			urlType := req.URLType
			if urlType == "" {
				urlType = URLSignup
			}
			runs[i] = r.checker.Check(ctx, kind, req.EntityID, req.URL, urlType)
		}(i, req)
	}
	wg.Wait()

	var sum Summary
	for i := range runs {
		if err := r.store.RecordRun(ctx, &runs[i]); err != nil {
			return nil, Summary{}, err
		}
		sum.Verified++
		switch runs[i].Status {
		case StatusSuccess:
			sum.Success++
		case StatusRedirect:
			sum.Redirect++
		case StatusBroken:
			sum.Broken++
		case StatusTimeout:
			sum.Timeout++
		case StatusBlocked:
			sum.Blocked++
		}
	}
	return runs, sum, nil
}

// Broken returns the latest broken/timeout run per entity, at least minAge
// old. The staleness patrol consumes this to auto-propose fixes.
func (r *Recorder) Broken(ctx context.Context, minAge, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.store.ListBroken(ctx, hoursToDuration(minAge), limit)
}

// CountBroken implements the stats counter consumed by the editorial service.
func (r *Recorder) CountBroken(ctx context.Context) (int, error) {
	return r.store.CountBroken(ctx)
}
