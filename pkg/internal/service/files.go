package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/objstore"
	"github.com/yeisme/sharevault/pkg/internal/types"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// FileService lists and deletes the files of a share.
type FileService struct {
	db      *gorm.DB
	objects objstore.Store
	ledger  *QuotaLedger
}

func NewFileService(gdb *gorm.DB, objects objstore.Store, ledger *QuotaLedger) *FileService {
	return &FileService{db: gdb, objects: objects, ledger: ledger}
}

// List returns the live files of a share in upload order.
func (s *FileService) List(ctx context.Context, shareID string) ([]model.File, error) {
	var files []model.File
	if err := s.db.WithContext(ctx).Where("share_id = ?", shareID).Order("created_at, id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	return files, nil
}

// DeleteFile soft deletes one file, shrinks the share counters and frees the
// file's part of the quota charge.
func (s *FileService) DeleteFile(ctx context.Context, owner, fileID string) error {
	var file model.File

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Take(&file, "id = ?", fileID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}

		if err != nil {
			return fmt.Errorf("lookup file: %w", err)
		}

		// serializes with DeleteShare, which sums the charges of the same files
		share, err := loadOwnedShare(tx.Clauses(clause.Locking{Strength: "UPDATE"}), owner, file.ShareID)
		if err != nil {
			return err
		}

		res := tx.Delete(&file)
		if res.Error != nil {
			return fmt.Errorf("delete file: %w", res.Error)
		}

		// lost a race with another delete of the same file
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}

		res = tx.Model(&model.Share{}).
			Where("id = ? AND file_count >= 1 AND size >= ?", share.ID, file.Size).
			UpdateColumns(map[string]any{
				"file_count": gorm.Expr("file_count - 1"),
				"size":       gorm.Expr("size - ?", file.Size),
			})
		if res.Error != nil {
			return fmt.Errorf("update share counters: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			return consistencyf("share %s counters below file %s", share.ID, file.ID)
		}

		return s.ledger.WithTx(tx).Adjust(ctx, share.UserID, -file.QuotaMB)
	})
	if err != nil {
		return err
	}

	s.removeObjects(ctx, []model.File{file})

	return nil
}

// removeObjects deletes stored bytes after the rows are gone. Failures only
// leave orphaned objects behind, so they are logged.
func (s *FileService) removeObjects(ctx context.Context, files []model.File) {
	ctx = context.WithoutCancel(ctx)

	for i := range files {
		if err := s.objects.Delete(ctx, files[i].ObjectKey); err != nil && !errors.Is(err, objstore.ErrNotFound) {
			nlog.Logger().Warn().Err(err).Str("key", files[i].ObjectKey).Msg("orphaned object left behind")
		}
	}
}

func toFileInfos(files []model.File) []types.FileInfo {
	out := make([]types.FileInfo, 0, len(files))
	for i := range files {
		out = append(out, toFileInfo(&files[i]))
	}

	return out
}

func toFileInfo(f *model.File) types.FileInfo {
	return types.FileInfo{
		ID:        f.ID,
		FileName:  f.FileName,
		Mimetype:  f.Mimetype,
		Hash:      f.Hash,
		Size:      f.Size,
		QuotaMB:   f.QuotaMB,
		CreatedAt: f.CreatedAt,
	}
}
