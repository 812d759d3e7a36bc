package livesync

import (
	"context"
	"errors"
)

// CycleResult is the outcome of a full Runner cycle
type CycleResult struct {
	*SyncResult
	Refresh RefreshAction
}

// Runner drives one sync cycle through a DeviceSyncService
type Runner struct {
	svc DeviceSyncService
}

func NewRunner(svc DeviceSyncService) *Runner {
	return &Runner{svc: svc}
}

// Run executes BeforeSync, TransferFiles, FinalizeSync and RefreshApplication
// in order. A failed transfer still finalizes the cycle with no files so the
// marker is removed and the session is closed.
func (r *Runner) Run(ctx context.Context, req *SyncRequest) (*CycleResult, error) {
	if err := r.svc.BeforeSync(ctx, req); err != nil {
		return nil, err
	}

	transferred, err := r.svc.TransferFiles(ctx, req)
	if err != nil {
		abort := *req
		abort.ModifiedFiles = nil
		_, finalizeErr := r.svc.FinalizeSync(ctx, &abort)
		return nil, errors.Join(err, finalizeErr)
	}

	finalReq := *req
	finalReq.ModifiedFiles = FilesOf(transferred)
	result, err := r.svc.FinalizeSync(ctx, &finalReq)
	if err != nil {
		return nil, err
	}
	if len(transferred) > 0 {
		result.TransferredFiles = transferred
	}

	action, err := r.svc.RefreshApplication(ctx, req, result)
	if err != nil {
		return nil, err
	}

	return &CycleResult{SyncResult: result, Refresh: action}, nil
}
