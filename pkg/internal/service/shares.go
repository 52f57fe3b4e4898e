package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
	"github.com/yeisme/sharevault/pkg/internal/types"
	nlog "github.com/yeisme/sharevault/pkg/log"
)

// slugCacheTTL bounds how long a slug -> share id mapping is trusted without the DB.
const slugCacheTTL = 10 * time.Minute

// ShareService manages shares and their settings for their owners.
type ShareService struct {
	db     *gorm.DB
	ledger *QuotaLedger
	tokens *TokenService
	files  *FileService
	slugs  *cache.Cache
	hash   PasswordHasher
	now    func() time.Time
	server configs.ServerConfig
	ttl    time.Duration
}

func NewShareService(deps Deps, ledger *QuotaLedger, tokens *TokenService, files *FileService, slugs *cache.Cache) *ShareService {
	return &ShareService{
		db:     deps.DB,
		ledger: ledger,
		tokens: tokens,
		files:  files,
		slugs:  slugs,
		hash:   deps.Hasher,
		now:    deps.Now,
		server: deps.Config.Server,
		ttl:    deps.Config.Transfer.DownloadTTL,
	}
}

// CreateShare creates an empty share owned by owner.
func (s *ShareService) CreateShare(ctx context.Context, owner string, req *types.CreateShareRequest) (*types.ShareInfo, error) {
	now := s.now()

	share := model.Share{
		ID:          newShareID(now),
		UserID:      owner,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		IsPublic:    req.IsPublic == nil || *req.IsPublic,
	}

	settings := model.ShareSettings{
		ShareID:       share.ID,
		ExpiresAt:     utcPtr(req.ExpiresAt),
		DownloadLimit: req.DownloadLimit,
	}

	if req.CustomSlug != "" {
		slug := strings.ToLower(req.CustomSlug)
		settings.CustomSlug = &slug
	}

	if req.Password != "" {
		h, err := s.hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}

		settings.PasswordHash = h
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := NewUserService(tx).Get(ctx, owner); err != nil {
			return err
		}

		if err := tx.Create(&share).Error; err != nil {
			return fmt.Errorf("insert share: %w", err)
		}

		return saveSettings(tx, &settings)
	})
	if err != nil {
		return nil, err
	}

	info := s.toInfo(&share, &settings)

	return &info, nil
}

// ListShares returns the owner's live shares, newest first.
func (s *ShareService) ListShares(ctx context.Context, owner string) (*types.ListSharesResponse, error) {
	var shares []model.Share
	if err := s.db.WithContext(ctx).Where("user_id = ?", owner).Order("id DESC").Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}

	ids := make([]string, 0, len(shares))
	for i := range shares {
		ids = append(ids, shares[i].ID)
	}

	var settings []model.ShareSettings
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("share_id IN ?", ids).Find(&settings).Error; err != nil {
			return nil, fmt.Errorf("list share settings: %w", err)
		}
	}

	byShare := make(map[string]*model.ShareSettings, len(settings))
	for i := range settings {
		byShare[settings[i].ShareID] = &settings[i]
	}

	resp := &types.ListSharesResponse{Shares: make([]types.ShareInfo, 0, len(shares))}
	for i := range shares {
		resp.Shares = append(resp.Shares, s.toInfo(&shares[i], byShare[shares[i].ID]))
	}

	return resp, nil
}

// GetShare returns a live share with its files.
func (s *ShareService) GetShare(ctx context.Context, owner, shareID string) (*types.ShareDetail, error) {
	tx := s.db.WithContext(ctx)

	share, err := loadOwnedShare(tx, owner, shareID)
	if err != nil {
		return nil, err
	}

	settings, err := loadSettings(tx, share.ID)
	if err != nil {
		return nil, err
	}

	files, err := s.files.List(ctx, share.ID)
	if err != nil {
		return nil, err
	}

	return &types.ShareDetail{ShareInfo: s.toInfo(share, settings), Files: toFileInfos(files)}, nil
}

// UpdateSettings applies a patch to a share and its policy.
func (s *ShareService) UpdateSettings(ctx context.Context, owner, shareID string, req *types.UpdateShareSettingsRequest) (*types.ShareInfo, error) {
	var (
		share    *model.Share
		settings *model.ShareSettings
		oldSlug  *string
	)

	var newHash *string

	if req.Password != nil && *req.Password != "" {
		h, err := s.hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}

		newHash = &h
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		if share, err = loadOwnedShare(tx, owner, shareID); err != nil {
			return err
		}

		if settings, err = loadSettings(tx, share.ID); err != nil {
			return err
		}

		if settings == nil {
			settings = &model.ShareSettings{ShareID: share.ID}
		}

		oldSlug = settings.CustomSlug

		applySharePatch(share, req)
		applySettingsPatch(settings, req, newHash)

		if err := tx.Model(share).Select("title", "description", "is_public").Updates(share).Error; err != nil {
			return fmt.Errorf("update share: %w", err)
		}

		return saveSettings(tx, settings)
	})
	if err != nil {
		return nil, err
	}

	s.forgetSlug(ctx, oldSlug)
	s.forgetSlug(ctx, settings.CustomSlug)

	info := s.toInfo(share, settings)

	return &info, nil
}

func applySharePatch(share *model.Share, req *types.UpdateShareSettingsRequest) {
	if req.Title != nil {
		share.Title = strings.TrimSpace(*req.Title)
	}

	if req.Description != nil {
		share.Description = *req.Description
	}

	if req.IsPublic != nil {
		share.IsPublic = *req.IsPublic
	}
}

func applySettingsPatch(settings *model.ShareSettings, req *types.UpdateShareSettingsRequest, newHash *string) {
	switch {
	case req.ClearExpiry:
		settings.ExpiresAt = nil
	case req.ExpiresAt != nil:
		settings.ExpiresAt = utcPtr(req.ExpiresAt)
	}

	if req.Password != nil {
		settings.PasswordHash = ""
		if newHash != nil {
			settings.PasswordHash = *newHash
		}
	}

	if req.DownloadLimit != nil {
		settings.DownloadLimit = nil
		if *req.DownloadLimit > 0 {
			limit := *req.DownloadLimit
			settings.DownloadLimit = &limit
		}
	}

	if req.CustomSlug != nil {
		settings.CustomSlug = nil
		if *req.CustomSlug != "" {
			slug := strings.ToLower(*req.CustomSlug)
			settings.CustomSlug = &slug
		}
	}
}

// DeleteShare soft deletes a share and its files and frees their quota.
// Objects are removed after the commit on a best effort basis.
func (s *ShareService) DeleteShare(ctx context.Context, owner, shareID string) error {
	var (
		files []model.File
		slug  *string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// uploads lock the same row before inserting files, so the file list
		// read below is complete
		share, err := loadOwnedShare(tx.Clauses(clause.Locking{Strength: "UPDATE"}), owner, shareID)
		if err != nil {
			return err
		}

		settings, err := loadSettings(tx, share.ID)
		if err != nil {
			return err
		}

		if settings != nil && settings.CustomSlug != nil {
			slug = settings.CustomSlug
			// frees the slug for other shares
			if err := tx.Model(settings).Update("custom_slug", nil).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("share_id = ?", share.ID).Find(&files).Error; err != nil {
			return fmt.Errorf("list files: %w", err)
		}

		var freed int64
		for i := range files {
			freed += files[i].QuotaMB
		}

		if len(files) > 0 {
			if err := tx.Where("share_id = ?", share.ID).Delete(&model.File{}).Error; err != nil {
				return fmt.Errorf("delete files: %w", err)
			}
		}

		res := tx.Delete(share)
		if res.Error != nil {
			return fmt.Errorf("delete share: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrShareNotFound, shareID)
		}

		return s.ledger.WithTx(tx).Adjust(ctx, share.UserID, -freed)
	})
	if err != nil {
		return err
	}

	s.forgetSlug(ctx, slug)
	s.files.removeObjects(ctx, files)

	return nil
}

// CreateDownloadLink issues a download signature for the owner's share.
func (s *ShareService) CreateDownloadLink(ctx context.Context, owner, shareID string, req *types.CreateDownloadLinkRequest) (*types.DownloadLinkResponse, error) {
	if _, err := loadOwnedShare(s.db.WithContext(ctx), owner, shareID); err != nil {
		return nil, err
	}

	ttl := s.ttl
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	var fileID *string
	if req.FileID != "" {
		fileID = &req.FileID
	}

	sig, err := s.tokens.IssueDownload(ctx, shareID, fileID, ttl)
	if err != nil {
		return nil, err
	}

	return s.downloadLink(sig), nil
}

func (s *ShareService) downloadLink(sig *model.DownloadSignature) *types.DownloadLinkResponse {
	return &types.DownloadLinkResponse{
		Signature: sig.Signature,
		URL:       s.server.PublicURL("/d/" + sig.Signature),
		ExpiresAt: sig.Expiry,
	}
}

// ResolveShareID maps a custom slug or a share id to a share id. Slug hits
// from the cache are checked against the database before they are trusted.
func (s *ShareService) ResolveShareID(ctx context.Context, slugOrID string) (string, error) {
	key := strings.ToLower(slugOrID)
	tx := s.db.WithContext(ctx)

	if s.slugs != nil {
		if id, err := cache.Get[string](ctx, s.slugs, key); err == nil {
			settings, err := loadSettings(tx, id)
			if err == nil && settings != nil && settings.CustomSlug != nil && *settings.CustomSlug == key {
				return id, nil
			}

			s.forgetSlug(ctx, &key)
		}
	}

	var settings model.ShareSettings

	err := tx.Where("custom_slug = ?", key).Take(&settings).Error

	switch {
	case err == nil:
		if s.slugs != nil {
			if err := cache.Set(ctx, s.slugs, key, settings.ShareID, slugCacheTTL); err != nil {
				nlog.Logger().Debug().Err(err).Msg("cache slug")
			}
		}

		return settings.ShareID, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("lookup slug: %w", err)
	}

	// ULIDs are case-insensitive; canonical form is upper case
	return strings.ToUpper(slugOrID), nil
}

func (s *ShareService) forgetSlug(ctx context.Context, slug *string) {
	if s.slugs == nil || slug == nil {
		return
	}

	if err := s.slugs.Delete(ctx, *slug); err != nil {
		nlog.Logger().Debug().Err(err).Str("slug", *slug).Msg("forget slug")
	}
}

func (s *ShareService) toInfo(share *model.Share, settings *model.ShareSettings) types.ShareInfo {
	info := types.ShareInfo{
		ID:            share.ID,
		Title:         share.Title,
		Description:   share.Description,
		IsPublic:      share.IsPublic,
		FileCount:     share.FileCount,
		Size:          share.Size,
		DownloadCount: share.DownloadCount,
		ViewCount:     share.ViewCount,
		URL:           s.server.PublicURL("/s/" + share.ID),
		CreatedAt:     share.CreatedAt,
		UpdatedAt:     share.UpdatedAt,
	}

	if settings != nil {
		info.Settings = types.ShareSettingsInfo{
			ExpiresAt:     settings.ExpiresAt,
			HasPassword:   settings.HasPassword(),
			DownloadLimit: settings.DownloadLimit,
			CustomSlug:    settings.CustomSlug,
		}

		if settings.CustomSlug != nil {
			info.URL = s.server.PublicURL("/s/" + *settings.CustomSlug)
		}
	}

	return info
}

// loadLiveShare returns a share that is not soft deleted.
func loadLiveShare(tx *gorm.DB, shareID string) (*model.Share, error) {
	var share model.Share

	err := tx.Take(&share, "id = ?", shareID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrShareNotFound, shareID)
	}

	if err != nil {
		return nil, fmt.Errorf("lookup share: %w", err)
	}

	return &share, nil
}

// lockLiveShare is loadLiveShare with SELECT ... FOR UPDATE. sqlite has no
// row locks; there the immediate transaction already holds the write lock.
func lockLiveShare(tx *gorm.DB, shareID string) (*model.Share, error) {
	return loadLiveShare(tx.Clauses(clause.Locking{Strength: "UPDATE"}), shareID)
}

// loadOwnedShare returns a live share owned by owner.
func loadOwnedShare(tx *gorm.DB, owner, shareID string) (*model.Share, error) {
	share, err := loadLiveShare(tx, shareID)
	if err != nil {
		return nil, err
	}

	if share.UserID != owner {
		return nil, ErrNotOwner
	}

	return share, nil
}

// loadShareForGate loads a share including soft deleted ones, plus its
// settings, so the gate can tell a deleted share from a live one.
func loadShareForGate(tx *gorm.DB, shareID string) (*model.Share, *model.ShareSettings, error) {
	var share model.Share

	err := tx.Unscoped().Take(&share, "id = ?", shareID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("lookup share: %w", err)
	}

	settings, err := loadSettings(tx, share.ID)
	if err != nil {
		return nil, nil, err
	}

	return &share, settings, nil
}

// loadSettings returns nil without error when the share has no policy row.
func loadSettings(tx *gorm.DB, shareID string) (*model.ShareSettings, error) {
	var settings model.ShareSettings

	err := tx.Take(&settings, "share_id = ?", shareID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("lookup share settings: %w", err)
	}

	return &settings, nil
}

func saveSettings(tx *gorm.DB, settings *model.ShareSettings) error {
	err := tx.Save(settings).Error
	if db.IsDuplicate(err) {
		return ErrSlugTaken
	}

	if err != nil {
		return fmt.Errorf("save share settings: %w", err)
	}

	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()

	return &u
}
