package syncer

import (
	"context"
	"encoding/json"

	"github.com/vocadrill/vocadrill/pkg/db"
	"github.com/vocadrill/vocadrill/pkg/logger"
	"github.com/vocadrill/vocadrill/pkg/storage"
	"gorm.io/datatypes"
)

type Service struct {
	client *Client
	store  *storage.Service
}

func NewService(client *Client, store *storage.Service) *Service {
	return &Service{client: client, store: store}
}

// PushMerge gathers the full local snapshot, pushes it, and overwrites the
// local tables with the server's unified result. Errors propagate: the
// login flow must surface a failed merge instead of silently keeping
// unsynced local data.
func (s *Service) PushMerge(ctx context.Context) error {
	snap := s.store.Snapshot(ctx)
	merged, err := s.client.Push(ctx, snap)
	if err != nil {
		s.record(ctx, "push", "failed", nil, err)
		return err
	}
	if err := s.store.ReplaceAll(ctx, merged); err != nil {
		s.record(ctx, "push", "failed", merged, err)
		return err
	}
	s.record(ctx, "push", "ok", merged, nil)
	logger.Info("push-merge sync applied",
		"words", len(merged.Words), "sentences", len(merged.Sentences), "conversations", len(merged.Conversations))
	return nil
}

// PullAtLaunch fetches the server state and applies it. Any failure is
// logged and swallowed: at launch, staying usable with local data beats
// freshness.
func (s *Service) PullAtLaunch(ctx context.Context) {
	remote, err := s.client.Pull(ctx)
	if err != nil {
		logger.Warn("sync pull failed, continuing with local data", "error", err)
		s.record(ctx, "pull", "failed", nil, err)
		return
	}
	if err := s.store.ReplaceAll(ctx, remote); err != nil {
		logger.Warn("failed to apply pulled state, continuing with local data", "error", err)
		s.record(ctx, "pull", "failed", remote, err)
		return
	}
	s.record(ctx, "pull", "ok", remote, nil)
	logger.Info("pull sync applied",
		"words", len(remote.Words), "sentences", len(remote.Sentences), "conversations", len(remote.Conversations))
}

// record appends an audit row for the attempt. Auditing is best-effort and
// skipped entirely when no database is initialized.
func (s *Service) record(ctx context.Context, direction, status string, snap *storage.Snapshot, cause error) {
	if db.DB == nil {
		return
	}
	detail := map[string]any{}
	if snap != nil {
		detail["words"] = len(snap.Words)
		detail["sentences"] = len(snap.Sentences)
		detail["conversations"] = len(snap.Conversations)
	}
	if cause != nil {
		detail["error"] = cause.Error()
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return
	}
	record := db.SyncRecord{Direction: direction, Status: status, Detail: datatypes.JSON(raw)}
	if err := db.DB.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Warn("failed to record sync attempt", "error", err)
	}
}
