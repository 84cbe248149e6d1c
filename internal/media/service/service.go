// Package service implements the upload orchestrator: it drives an upload
// through validation, transcoding, storage and registration, and owns the
// compensation and replacement rules that keep the object store and the
// registry consistent.
package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"musicaldb_backend/internal/adapters/storage"
	"musicaldb_backend/internal/events"
	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/internal/media/repository"
	"musicaldb_backend/internal/media/transcode"
	"musicaldb_backend/internal/media/transport"
	"musicaldb_backend/internal/media/validation"
	"musicaldb_backend/platform/apperr"
	"musicaldb_backend/platform/lock"
	"musicaldb_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	msgAuthRequired      = "Authentication required"
	msgNoFile            = "No file uploaded"
	msgInvalidEntityType = "Invalid entity type"
	msgInvalidEntityID   = "Invalid entity id"
	msgInvalidImageType  = "Invalid image type"
	msgConfigError       = "AWS S3 configuration error"
	msgTranscodeFailed   = "Image could not be processed"
	msgUploadFailed      = "Upload failed"
	msgDatabaseError     = "Database error"
	msgImageNotFound     = "Image not found"
	msgDeleteForbidden   = "Not allowed to delete this image"
	msgDeleteFailed      = "Delete failed"

	detailStorageConfig = "Object storage settings are incomplete"
	detailStoragePut    = "Object storage rejected the upload"
	detailRegistry      = "The uploaded image could not be recorded"
	detailLockBusy      = "Another profile upload is still in progress"
	detailStorageDelete = "Object storage rejected the delete"
)

// Object metadata keys written with every stored asset.
const (
	metaAssetID          = "asset-id"
	metaUploadedBy       = "uploaded-by"
	metaPurpose          = "purpose"
	metaEntityType       = "entity-type"
	metaEntityID         = "entity-id"
	metaOriginalFilename = "original-filename"
)

const cleanupTimeout = 30 * time.Second

// Upload outcomes used as metric labels.
const (
	outcomeSuccess         = "success"
	outcomeUnauthenticated = "unauthenticated"
	outcomeNoFile          = "no_file"
	outcomeInvalidTarget   = "invalid_target"
	outcomeConfigError     = "config_error"
	outcomeEntityNotFound  = "entity_not_found"
	outcomeInvalidFile     = "invalid_file"
	outcomeTranscodeError  = "transcode_error"
	outcomeLockUnavailable = "lock_unavailable"
	outcomeStorageFault    = "storage_fault"
	outcomeRegistryFault   = "registry_fault"
)

// Observer receives pipeline measurements.
type Observer interface {
	RecordUpload(purpose, outcome string, bytes int64)
	RecordStage(stage string, d time.Duration)
	RecordDelete(reason, outcome string)
	RecordCleanupFailure(step string)
	RecordOrphan()
}

type nopObserver struct{}

func (nopObserver) RecordUpload(string, string, int64) {}
func (nopObserver) RecordStage(string, time.Duration)  {}
func (nopObserver) RecordDelete(string, string)        {}
func (nopObserver) RecordCleanupFailure(string)        {}
func (nopObserver) RecordOrphan()                      {}

// FileInput is the uploaded file as received.
type FileInput struct {
	Filename string
	Data     []byte
}

// Options wires the orchestrator's collaborators. Store is nil when object
// storage is not configured; uploads then fail with a configuration error.
type Options struct {
	Registry           repository.AssetRegistry
	Entities           repository.EntityChecker
	Store              storage.StorageService
	Bucket             string
	Validator          *validation.Validator
	Transcoder         *transcode.Transcoder
	Policies           domain.Policies
	Locker             lock.Locker
	LockTTL            time.Duration
	CleanupConcurrency int
	Bus                events.Bus
	Observer           Observer
	Log                *logger.Logger
}

// Service is the upload orchestrator.
type Service struct {
	registry           repository.AssetRegistry
	entities           repository.EntityChecker
	store              storage.StorageService
	bucket             string
	validator          *validation.Validator
	transcoder         *transcode.Transcoder
	policies           domain.Policies
	locker             lock.Locker
	lockTTL            time.Duration
	cleanupConcurrency int
	bus                events.Bus
	observer           Observer
	log                *logger.Logger
	newID              func() uuid.UUID
}

// New creates the orchestrator.
func New(opts Options) *Service {
	s := &Service{
		registry:           opts.Registry,
		entities:           opts.Entities,
		store:              opts.Store,
		bucket:             opts.Bucket,
		validator:          opts.Validator,
		transcoder:         opts.Transcoder,
		policies:           opts.Policies,
		locker:             opts.Locker,
		lockTTL:            opts.LockTTL,
		cleanupConcurrency: opts.CleanupConcurrency,
		bus:                opts.Bus,
		observer:           opts.Observer,
		log:                opts.Log,
		newID:              uuid.New,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.locker == nil {
		s.locker = lock.NewMemoryLocker()
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.cleanupConcurrency < 1 {
		s.cleanupConcurrency = 1
	}
	return s
}

// upload tracks one request through the state machine.
type upload struct {
	principal  domain.Principal
	policy     domain.Policy
	entityType domain.EntityType
	entityID   uuid.UUID
	stage      domain.Stage
	stageStart time.Time
}

func (s *Service) advance(u *upload, next domain.Stage) {
	now := time.Now()
	s.observer.RecordStage(string(next), now.Sub(u.stageStart))
	u.stage = next
	u.stageStart = now
}

// fail ends the upload in the failed state, logging the stage it reached.
func (s *Service) fail(ctx context.Context, u *upload, outcome string, err *apperr.Error) (transport.UploadResponse, error) {
	s.log.WithContext(ctx).Info("upload rejected",
		"purpose", u.policy.Purpose, "stage", u.stage, "outcome", outcome, "error", err.Message)
	u.stage = domain.StageFailed
	s.observer.RecordUpload(string(u.policy.Purpose), outcome, 0)
	return transport.UploadResponse{}, err
}

// UploadPoster ingests a poster for a musical or performance.
func (s *Service) UploadPoster(ctx context.Context, principal *domain.Principal, file *FileInput, entityType, entityID string) (transport.UploadResponse, error) {
	return s.ingest(ctx, principal, file, domain.PurposePoster, entityType, entityID)
}

// UploadProfile ingests a profile picture for the caller and removes the
// caller's previous profile pictures once the new one is registered.
func (s *Service) UploadProfile(ctx context.Context, principal *domain.Principal, file *FileInput) (transport.UploadResponse, error) {
	return s.ingest(ctx, principal, file, domain.PurposeProfile, "", "")
}

// ingest drives one upload from received to complete. rawType and rawID are
// ignored for self-targeted purposes, which always attach to the caller.
func (s *Service) ingest(ctx context.Context, principal *domain.Principal, file *FileInput, purpose domain.Purpose, rawType, rawID string) (transport.UploadResponse, error) {
	log := s.log.WithContext(ctx)

	u := &upload{
		policy:     domain.Policy{Purpose: purpose},
		stage:      domain.StageReceived,
		stageStart: time.Now(),
	}

	policy, ok := s.policies.For(purpose)
	if !ok {
		return s.fail(ctx, u, outcomeConfigError, apperr.Internal(msgUploadFailed))
	}
	u.policy = policy

	if principal == nil {
		return s.fail(ctx, u, outcomeUnauthenticated, apperr.Unauthorized(msgAuthRequired))
	}
	if file == nil || len(file.Data) == 0 {
		return s.fail(ctx, u, outcomeNoFile, apperr.BadRequest(msgNoFile))
	}
	u.principal = *principal
	s.advance(u, domain.StageAuthorized)

	if policy.SelfTargeted {
		u.entityType, u.entityID = domain.EntityUser, principal.ID
	} else {
		target, ok := domain.ParsePosterTarget(rawType)
		if !ok {
			return s.fail(ctx, u, outcomeInvalidTarget, apperr.Validation(msgInvalidEntityType))
		}
		targetID, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return s.fail(ctx, u, outcomeInvalidTarget, apperr.Validation(msgInvalidEntityID))
		}
		u.entityType, u.entityID = target, targetID
	}

	if err := s.requireStore(); err != nil {
		log.Error("upload rejected: object storage not configured", "purpose", purpose)
		return s.fail(ctx, u, outcomeConfigError, err)
	}

	if !policy.SelfTargeted {
		exists, err := s.entities.EntityExists(ctx, u.entityType, u.entityID)
		if err != nil {
			log.DatabaseError("check upload target", err)
			return s.fail(ctx, u, outcomeRegistryFault, apperr.Wrap(apperr.KindInternal, msgDatabaseError, err).WithDetails(detailRegistry))
		}
		if !exists {
			return s.fail(ctx, u, outcomeEntityNotFound, apperr.NotFound(u.entityType.Label()+" not found"))
		}
	}
	s.advance(u, domain.StageTargetValidated)

	verdict := s.validator.Validate(file.Data, file.Filename, purpose)
	if !verdict.Valid {
		return s.fail(ctx, u, outcomeInvalidFile, apperr.Validation(verdict.Message).WithDetails(map[string]string{
			"reason": string(verdict.Reason),
		}))
	}
	s.advance(u, domain.StageContentValidated)

	result, err := s.transcoder.Process(file.Data, purpose)
	if err != nil {
		log.Warn("transcode failed", "purpose", purpose, "error", err)
		return s.fail(ctx, u, outcomeTranscodeError, apperr.Wrap(apperr.KindValidation, msgTranscodeFailed, err))
	}
	s.advance(u, domain.StageTranscoded)

	if policy.SingleInstance {
		release, err := s.locker.Acquire(ctx, ownerLockKey(purpose, u.entityType, u.entityID), s.lockTTL)
		if err != nil {
			log.Error("owner lock unavailable", "purpose", purpose, "entity_id", u.entityID, "error", err)
			return s.fail(ctx, u, outcomeLockUnavailable, apperr.Wrap(apperr.KindInternal, msgUploadFailed, err).WithDetails(detailLockBusy))
		}
		defer release()
	}

	assetID := s.newID()
	filename := validation.SanitizeFilename(file.Filename)
	key := storage.ObjectKey(storage.KeyInput{
		Purpose:    string(purpose),
		EntityType: string(u.entityType),
		EntityID:   u.entityID,
		AssetID:    assetID,
		Extension:  result.Extension,
	})

	locator, err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(result.Data), result.Size, result.MimeType,
		objectMetadata(assetID, u, filename))
	if err != nil {
		log.StorageError("put", key, err)
		return s.fail(ctx, u, outcomeStorageFault, apperr.Wrap(apperr.KindInternal, msgUploadFailed, err).WithDetails(detailStoragePut))
	}
	s.advance(u, domain.StageStored)

	asset, err := s.registry.Create(ctx, repository.CreateAssetParams{
		ID:               assetID,
		OriginalFilename: filename,
		StorageKey:       key,
		StorageLocator:   locator,
		ByteSize:         result.Size,
		MimeType:         result.MimeType,
		Width:            result.Width,
		Height:           result.Height,
		UploadedBy:       principal.ID,
		EntityType:       u.entityType,
		EntityID:         u.entityID,
		Purpose:          purpose,
	})
	if err != nil {
		log.DatabaseError("create media asset", err)
		s.compensate(ctx, key)
		return s.fail(ctx, u, outcomeRegistryFault, apperr.Wrap(apperr.KindInternal, msgDatabaseError, err).WithDetails(detailRegistry))
	}
	s.advance(u, domain.StageRegistered)

	replaced := 0
	if policy.SingleInstance {
		replaced = s.replacePrior(ctx, u, asset.ID)
		s.advance(u, domain.StageProfileReplaced)
	}
	s.advance(u, domain.StageComplete)

	s.observer.RecordUpload(string(purpose), outcomeSuccess, asset.ByteSize)
	log.Info("media asset uploaded",
		"asset_id", asset.ID, "purpose", purpose, "entity_type", u.entityType,
		"entity_id", u.entityID, "bytes", asset.ByteSize, "replaced", replaced)

	s.publish(ctx, events.MediaAssetUploaded{
		BaseEvent:  events.NewBaseEvent(),
		AssetID:    asset.ID,
		Purpose:    string(purpose),
		EntityType: string(u.entityType),
		EntityID:   u.entityID,
		UploadedBy: principal.ID,
		StorageKey: key,
		ByteSize:   asset.ByteSize,
		Replaced:   replaced,
	})

	return transport.UploadResponse{
		Success:  true,
		ImageID:  asset.ID,
		URL:      asset.StorageLocator,
		Width:    asset.Width,
		Height:   asset.Height,
		FileSize: asset.ByteSize,
	}, nil
}

// objectMetadata is stored with the object so a stray key can be traced back
// to its owner without the registry. Values must be header safe.
func objectMetadata(assetID uuid.UUID, u *upload, filename string) map[string]string {
	return map[string]string{
		metaAssetID:          assetID.String(),
		metaUploadedBy:       u.principal.ID.String(),
		metaPurpose:          string(u.policy.Purpose),
		metaEntityType:       string(u.entityType),
		metaEntityID:         u.entityID.String(),
		metaOriginalFilename: url.PathEscape(filename),
	}
}

// compensate makes one attempt to remove an object whose registry row could
// not be written. Failure leaves an orphan, which is logged and counted.
func (s *Service) compensate(ctx context.Context, key string) {
	if err := s.store.DeleteObject(context.WithoutCancel(ctx), s.bucket, key); err != nil {
		s.log.WithContext(ctx).StorageError("compensating delete", key, err)
		s.observer.RecordOrphan()
	}
}

// replacePrior removes every other asset of the same purpose and owner.
// Failures are logged per asset and never fail the upload.
func (s *Service) replacePrior(ctx context.Context, u *upload, keep uuid.UUID) int {
	// The new asset is committed; a client that goes away must not leave the
	// old ones behind.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	purpose := u.policy.Purpose
	prior, err := s.registry.ListByEntity(ctx, repository.ListAssetsParams{
		EntityType: u.entityType,
		EntityID:   u.entityID,
		Purpose:    &purpose,
	})
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("list prior assets", err)
		s.observer.RecordCleanupFailure("list")
		return 0
	}

	var removed atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.cleanupConcurrency)
	for _, old := range prior {
		if old.ID == keep {
			continue
		}
		g.Go(func() error {
			if s.removePrior(ctx, u.principal, old) {
				removed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(removed.Load())
}

// removePrior deletes the object first; the row is only removed once its
// bytes are gone so a registry row never outlives a failed store delete.
func (s *Service) removePrior(ctx context.Context, principal domain.Principal, old repository.Asset) bool {
	log := s.log.WithContext(ctx)

	if err := s.store.DeleteObject(ctx, s.bucket, old.StorageKey); err != nil {
		log.StorageError("replace prior asset", old.StorageKey, err)
		s.observer.RecordCleanupFailure("storage")
		return false
	}
	if err := s.registry.Delete(ctx, old.ID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		log.DatabaseError("delete replaced asset", err)
		s.observer.RecordCleanupFailure("registry")
		return false
	}

	s.observer.RecordDelete(events.DeleteReasonReplacement, outcomeSuccess)
	s.publish(ctx, events.MediaAssetDeleted{
		BaseEvent:  events.NewBaseEvent(),
		AssetID:    old.ID,
		Purpose:    string(old.Purpose),
		EntityType: string(old.EntityType),
		EntityID:   old.EntityID,
		DeletedBy:  principal.ID,
		Reason:     events.DeleteReasonReplacement,
	})
	return true
}

// Delete removes an asset owned by the caller, or any asset for admins.
func (s *Service) Delete(ctx context.Context, principal *domain.Principal, assetID uuid.UUID) error {
	if principal == nil {
		return apperr.Unauthorized(msgAuthRequired)
	}
	log := s.log.WithContext(ctx)

	asset, err := s.registry.GetByID(ctx, assetID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.NotFound(msgImageNotFound)
		}
		log.DatabaseError("get media asset", err)
		return apperr.Wrap(apperr.KindInternal, msgDatabaseError, err)
	}

	if !principal.Owns(asset.UploadedBy) {
		s.observer.RecordDelete(events.DeleteReasonExplicit, "forbidden")
		return apperr.Forbidden(msgDeleteForbidden)
	}

	if err := s.requireStore(); err != nil {
		return err
	}
	if err := s.store.DeleteObject(ctx, s.bucket, asset.StorageKey); err != nil {
		log.StorageError("delete", asset.StorageKey, err)
		s.observer.RecordDelete(events.DeleteReasonExplicit, outcomeStorageFault)
		return apperr.Wrap(apperr.KindInternal, msgDeleteFailed, err).WithDetails(detailStorageDelete)
	}

	if err := s.registry.Delete(ctx, asset.ID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		log.DatabaseError("delete media asset", err)
		s.observer.RecordDelete(events.DeleteReasonExplicit, outcomeRegistryFault)
		return apperr.Wrap(apperr.KindInternal, msgDatabaseError, err)
	}

	s.observer.RecordDelete(events.DeleteReasonExplicit, outcomeSuccess)
	log.Info("media asset deleted", "asset_id", asset.ID, "purpose", asset.Purpose, "admin", principal.IsAdmin())

	s.publish(ctx, events.MediaAssetDeleted{
		BaseEvent:  events.NewBaseEvent(),
		AssetID:    asset.ID,
		Purpose:    string(asset.Purpose),
		EntityType: string(asset.EntityType),
		EntityID:   asset.EntityID,
		DeletedBy:  principal.ID,
		Reason:     events.DeleteReasonExplicit,
	})
	return nil
}

// ListByEntity returns the public projection of an entity's assets, newest first.
func (s *Service) ListByEntity(ctx context.Context, principal *domain.Principal, entityType, entityID, imageType string) ([]transport.ImageResponse, error) {
	if principal == nil {
		return nil, apperr.Unauthorized(msgAuthRequired)
	}

	target, ok := domain.ParseEntityType(entityType)
	if !ok {
		return nil, apperr.Validation(msgInvalidEntityType)
	}
	targetID, err := uuid.Parse(strings.TrimSpace(entityID))
	if err != nil {
		return nil, apperr.Validation(msgInvalidEntityID)
	}

	params := repository.ListAssetsParams{EntityType: target, EntityID: targetID}
	if strings.TrimSpace(imageType) != "" {
		purpose, ok := domain.ParsePurpose(imageType)
		if !ok {
			return nil, apperr.Validation(msgInvalidImageType)
		}
		params.Purpose = &purpose
	}

	assets, err := s.registry.ListByEntity(ctx, params)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("list media assets", err)
		return nil, apperr.Wrap(apperr.KindInternal, msgDatabaseError, err)
	}

	images := make([]transport.ImageResponse, 0, len(assets))
	for _, asset := range assets {
		images = append(images, toImageResponse(asset))
	}
	return images, nil
}

// Get returns the public projection of one asset.
func (s *Service) Get(ctx context.Context, principal *domain.Principal, assetID uuid.UUID) (transport.ImageResponse, error) {
	if principal == nil {
		return transport.ImageResponse{}, apperr.Unauthorized(msgAuthRequired)
	}

	asset, err := s.registry.GetByID(ctx, assetID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return transport.ImageResponse{}, apperr.NotFound(msgImageNotFound)
		}
		s.log.WithContext(ctx).DatabaseError("get media asset", err)
		return transport.ImageResponse{}, apperr.Wrap(apperr.KindInternal, msgDatabaseError, err)
	}
	return toImageResponse(asset), nil
}

func (s *Service) requireStore() *apperr.Error {
	if s.store == nil {
		return apperr.Internal(msgConfigError).WithDetails(detailStorageConfig)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

func ownerLockKey(purpose domain.Purpose, entityType domain.EntityType, entityID uuid.UUID) string {
	return fmt.Sprintf("media:%s:%s:%s", purpose, entityType, entityID)
}

func toImageResponse(asset repository.Asset) transport.ImageResponse {
	return transport.ImageResponse{
		ID:        asset.ID,
		URL:       asset.StorageLocator,
		ImageType: string(asset.Purpose),
		Width:     asset.Width,
		Height:    asset.Height,
		FileSize:  asset.ByteSize,
		Palette:   asset.Palette,
		CreatedAt: asset.CreatedAt,
	}
}
