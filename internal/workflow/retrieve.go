package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"server/internal/domain"
)

// videoInformation is the retrieve stage's checkpointed output: the fields of
// the captured payload the rest of the pipeline consumes.
type videoInformation struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Captions string `json:"captions"`
}

// retrieveStage loads the captured submission payload from blob storage and
// extracts the video information. Data absence is not transient, so the stage
// runs without retry.
func (o *Orchestrator) retrieveStage(ctx context.Context, sub *domain.Submission) (videoInformation, error) {
	var video videoInformation

	data, _, err := o.blobs.Get(ctx, sub.PayloadKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return video, fmt.Errorf("%w: %s", domain.ErrPayloadMissing, sub.ID)
		}
		return video, fmt.Errorf("read payload: %w", err)
	}

	var payload domain.SubmissionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return video, fmt.Errorf("decode payload: %w", err)
	}
	if payload.YoutubeVideo == nil {
		return video, fmt.Errorf("%w: no video data in submission %s", domain.ErrIncompleteSubmission, sub.ID)
	}
	if payload.YoutubeVideo.Captions == "" {
		return video, fmt.Errorf("%w: no captions in submission %s", domain.ErrIncompleteSubmission, sub.ID)
	}

	video.Title = payload.YoutubeVideo.Title
	video.Author = payload.YoutubeVideo.Author
	video.Captions = payload.YoutubeVideo.Captions
	return video, nil
}
