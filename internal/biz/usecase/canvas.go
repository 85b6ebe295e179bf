package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
	"github.com/devricklin/slack-merge-gate/internal/logging"
)

var storeLog = logging.ForComponent(logging.CompStore)

// CanvasFetcher turns channel canvases into text
type CanvasFetcher struct {
	slack repo.SlackRepo
}

// NewCanvasFetcher creates a new canvas fetcher
func NewCanvasFetcher(slack repo.SlackRepo) *CanvasFetcher {
	return &CanvasFetcher{slack: slack}
}

// FetchOne fetches and flattens a single canvas. Failures are logged and yield nil.
func (uc *CanvasFetcher) FetchOne(ctx context.Context, token, fileID string) *domain.CanvasContent {
	file, err := uc.slack.CanvasContent(ctx, token, fileID)
	if err != nil {
		storeLog.Warn("canvas_fetch_failed", "file_id", fileID, "error", err)
		return nil
	}
	if file == nil || file.TS == "" {
		storeLog.Warn("canvas_malformed", "file_id", fileID)
		return nil
	}
	text := domain.CleanMessageTextWith(domain.ExtractCanvasText(file.Blocks), domain.ChannelMarker)
	return &domain.CanvasContent{Content: text, TS: file.TS, FileID: fileID}
}

// FetchAllForChannel fetches the canvases of a channel in tab order, dropping failures.
// When explicitID is set only that canvas is fetched.
func (uc *CanvasFetcher) FetchAllForChannel(ctx context.Context, token string, info *repo.ChannelInfo, explicitID string) []domain.CanvasContent {
	var ids []string
	switch {
	case explicitID != "":
		ids = []string{explicitID}
	case info != nil:
		ids = info.CanvasFileIDs
	}
	if len(ids) == 0 {
		return nil
	}

	results := make([]*domain.CanvasContent, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = uc.FetchOne(ctx, token, id)
			return nil
		})
	}
	_ = g.Wait()

	contents := make([]domain.CanvasContent, 0, len(ids))
	for _, c := range results {
		if c != nil {
			contents = append(contents, *c)
		}
	}
	return contents
}
