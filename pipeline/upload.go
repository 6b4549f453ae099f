package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/livepeer/catalyst-ingest/clients"
	ingesterrors "github.com/livepeer/catalyst-ingest/errors"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/progress"
	"github.com/livepeer/catalyst-ingest/video"
	"golang.org/x/sync/errgroup"
)

const (
	uploadStartPercent = 40
	uploadEndPercent   = 85
)

type uploadItem struct {
	path string
	size int64
	// segment index, -1 for the thumbnail
	index int
}

type uploadResult struct {
	upload clients.BlobUpload
	err    error
}

// uploadAll stores every segment and the thumbnail. Uploads run concurrently
// and all of them settle before the outcome is decided, so that a failure
// reports how many segments were lost.
func (c *Coordinator) uploadAll(ctx context.Context, job *JobInfo) (err error) {
	segments := job.segmentation.Segments
	items := make([]uploadItem, 0, len(segments)+1)
	for _, s := range segments {
		items = append(items, uploadItem{path: s.LocalPath, index: s.Index})
	}
	items = append(items, uploadItem{path: job.thumbnail, index: -1})

	job.uploadBytes = 0
	for i := range items {
		if info, err := os.Stat(items[i].path); err == nil {
			items[i].size = info.Size()
			job.uploadBytes += info.Size()
		}
	}

	if err := c.setProgress(ctx, job, progress.StatusUploadingStorage, uploadStartPercent, fmt.Sprintf("Uploading %d segments and thumbnail", len(segments))); err != nil {
		return err
	}
	defer c.timeStage("uploading_storage", c.clock.Now(), &err)

	results := make([]uploadResult, len(items))
	done := make(chan int, len(items))
	opts := clients.UploadOptions{Epochs: job.Epochs}
	uploaded := progress.NewAccumulator()

	// g.Go blocks once the limit is reached, so schedule from a separate
	// goroutine and keep this one free to report progress
	go func() {
		var g errgroup.Group
		g.SetLimit(c.opts.UploadConcurrency)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				up, err := recovered(func() (clients.BlobUpload, error) {
					return c.Storage.Upload(ctx, job.JobID, item.path, opts)
				})
				results[i] = uploadResult{upload: up, err: err}
				uploaded.Accumulate(uint64(item.size))
				done <- i
				return nil
			})
		}
		_ = g.Wait()
		close(done)
	}()

	var (
		settled      int
		finalizedErr error
	)
	for range done {
		settled++
		if finalizedErr != nil {
			continue
		}
		percent := progress.ScalePercent(uint64(settled), uint64(len(items)), uploadStartPercent, uploadEndPercent)
		finalizedErr = c.setProgressETA(ctx, job, progress.StatusUploadingStorage, percent,
			fmt.Sprintf("Uploaded %d of %d files", settled, len(items)),
			job.eta(progress.StatusUploadingStorage, int64(uploaded.Size())))
	}
	if finalizedErr != nil {
		return finalizedErr
	}

	blobIDSet, cost, err := collectUploads(segments, results)
	if err != nil {
		return err
	}
	job.blobIDSet = blobIDSet
	job.storageCost = cost
	log.LogCtx(ctx, "stored all segments", "segments", len(segments), "cost", cost)
	return nil
}

// collectUploads turns the settled uploads into the blob id set. The last
// result belongs to the thumbnail.
func collectUploads(segments []video.Segment, results []uploadResult) (video.StoredBlobIDSet, int64, error) {
	var (
		failed     int
		firstCause error
		cost       int64
	)
	set := video.StoredBlobIDSet{Type: video.BlobSetTypeHLS}
	for i, s := range segments {
		r := results[i]
		if r.err != nil {
			failed++
			if firstCause == nil {
				firstCause = r.err
			}
			continue
		}
		cost += r.upload.CostUnits
		set.Segments = append(set.Segments, video.UploadedSegment{
			Index:     s.Index,
			ContentID: r.upload.ContentID,
			Duration:  s.Duration,
		})
	}
	if failed > 0 {
		return video.StoredBlobIDSet{}, 0, &ingesterrors.BatchUploadError{Failed: failed, Total: len(segments), FirstCause: firstCause}
	}

	thumb := results[len(segments)]
	if thumb.err != nil {
		return video.StoredBlobIDSet{}, 0, fmt.Errorf("thumbnail upload failed: %w", thumb.err)
	}
	cost += thumb.upload.CostUnits
	set.ThumbnailContentID = thumb.upload.ContentID
	return set, cost, nil
}
