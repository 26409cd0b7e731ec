package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fileshare/internal/apperror"
	"fileshare/internal/metrics"
	"fileshare/internal/model"
	"fileshare/internal/ratelimit"
	"fileshare/internal/repository"
	"fileshare/internal/storage"
	"fileshare/internal/validator"
)

// UploadInput is one file handed to the coordinator.
type UploadInput struct {
	// ClientKey identifies the caller for rate limiting, usually its network address.
	ClientKey   string
	Filename    string
	ContentType string
	Description string
	Visibility  model.Visibility
	Size        int64
	Body        io.Reader
}

// FileListResult is the service-level DTO for paginated files.
type FileListResult struct {
	Items []model.FileRecord `json:"data"`
	Total int                `json:"total"`
}

// FileService defines the use cases for stored files.
type FileService interface {
	// Upload runs validate, rate-limit, quota check, hash, blob write, metadata write and
	// quota commit in that order. A blob whose metadata cannot be written is deleted again.
	Upload(ctx context.Context, actor *model.Account, in UploadInput) (*model.UploadResult, error)

	// List returns the caller's files using limit/offset and a total count.
	List(ctx context.Context, actor *model.Account, limit, offset int) (*FileListResult, error)

	// Get returns a file the caller may see together with a download URL.
	Get(ctx context.Context, actor *model.Account, id string) (*model.UploadResult, error)

	// Delete removes the metadata, then the blob, then gives the bytes back to the owner's quota.
	Delete(ctx context.Context, actor *model.Account, id string) error
}

// UploadOptions tune the coordinator.
type UploadOptions struct {
	// RequireApproval stores uploads by non-staff accounts as pending.
	RequireApproval bool
	// URLExpiry is the lifetime of returned download URLs.
	URLExpiry time.Duration
	// AtomicReserve reserves quota with one conditional update instead of check-then-commit.
	AtomicReserve bool
}

type fileService struct {
	store     storage.Storage
	files     repository.FileRepository
	ledger    *Ledger
	limiter   *ratelimit.Limiter
	validator *validator.Validator
	opts      UploadOptions
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewFileService constructs the upload coordinator.
func NewFileService(
	store storage.Storage,
	files repository.FileRepository,
	ledger *Ledger,
	limiter *ratelimit.Limiter,
	v *validator.Validator,
	opts UploadOptions,
	m *metrics.Metrics,
	log zerolog.Logger,
) FileService {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = time.Hour
	}
	return &fileService{
		store:     store,
		files:     files,
		ledger:    ledger,
		limiter:   limiter,
		validator: v,
		opts:      opts,
		metrics:   m,
		log:       log.With().Str("component", "upload").Logger(),
	}
}

func (s *fileService) Upload(ctx context.Context, actor *model.Account, in UploadInput) (res *model.UploadResult, err error) {
	ctx, span := tracer.Start(ctx, "FileService.Upload")
	defer span.End()
	defer func() { s.recordUpload(span, in.Size, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "file content is missing")
	}
	if in.Visibility == "" {
		in.Visibility = model.VisibilityPrivate
	}
	if !in.Visibility.Valid() {
		return nil, apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "visibility must be public or private")
	}
	span.SetAttributes(
		attribute.String("account.id", actor.ID),
		attribute.Int64("file.size", in.Size),
	)

	// 1. validate
	category, err := s.validator.Validate(in.Size, in.ContentType, in.Filename)
	if err != nil {
		return nil, err
	}

	// 2. rate limit
	if err := s.admit(ctx, in.ClientKey, in.Size); err != nil {
		return nil, err
	}

	// 3. quota
	if s.opts.AtomicReserve {
		err = s.ledger.Reserve(ctx, actor.ID, in.Size)
	} else {
		err = s.ledger.Headroom(ctx, actor.ID, in.Size)
	}
	if err != nil {
		return nil, err
	}
	span.AddEvent("quota_checked")

	// From here on a reservation, if any, must be released on failure.
	release := func() {
		if s.opts.AtomicReserve {
			if rerr := s.ledger.CommitUsage(context.WithoutCancel(ctx), actor.ID, -in.Size); rerr != nil {
				s.log.Error().Err(rerr).Str("account_id", actor.ID).Int64("size", in.Size).Msg("failed to release quota reservation")
			}
		}
	}

	// 4. hash
	body, hash, err := hashPayload(in.Body, in.Size)
	if err != nil {
		release()
		return nil, err
	}
	span.AddEvent("hashed")

	// 5. blob
	key := objectKey(actor.ID, in.Filename, now())
	opt := storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata: map[string]string{
			"original-filename": in.Filename,
			"sha256":            hash,
		},
	}
	if err := s.putBlob(ctx, key, body, opt); err != nil {
		release()
		return nil, err
	}
	span.AddEvent("blob_written")

	// 6. metadata
	approval := model.ApprovalApproved
	if s.opts.RequireApproval && !actor.IsAdmin && !actor.IsModerator {
		approval = model.ApprovalPending
	}
	ts := now()
	rec := &model.FileRecord{
		ID:          uuid.NewString(),
		OwnerID:     actor.ID,
		Filename:    in.Filename,
		Description: strings.TrimSpace(in.Description),
		Size:        in.Size,
		ContentHash: hash,
		ContentType: in.ContentType,
		Category:    string(category),
		StorageKey:  key,
		Visibility:  in.Visibility,
		Approval:    approval,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	stored, err := s.files.Create(ctx, rec)
	if err != nil {
		s.rollbackBlob(ctx, key)
		release()
		return nil, apperror.Wrap(err, apperror.KindPersistence, "", "failed to save file metadata")
	}
	span.AddEvent("metadata_written")

	// 7. quota commit; the file exists now, so a failure here only lets the counter lag.
	if !s.opts.AtomicReserve {
		if err := s.ledger.CommitUsage(ctx, actor.ID, in.Size); err != nil {
			s.metrics.QuotaCommitFailures.Inc()
			s.log.Error().Err(err).
				Str("account_id", actor.ID).
				Str("file_id", stored.ID).
				Int64("size", in.Size).
				Msg("quota commit failed after upload; usage undercounted")
		}
	}

	s.log.Info().
		Str("account_id", actor.ID).
		Str("file_id", stored.ID).
		Str("category", stored.Category).
		Str("size", humanize.IBytes(uint64(stored.Size))).
		Msg("file uploaded")

	return &model.UploadResult{File: stored, URL: s.presign(ctx, stored.StorageKey)}, nil
}

func (s *fileService) admit(ctx context.Context, clientKey string, size int64) error {
	d, err := s.limiter.Admit(ctx, clientKey, size)
	if err != nil {
		return apperror.Wrap(err, apperror.KindStorageBackend, "", "rate limiter unavailable")
	}
	if d.Allowed {
		return nil
	}
	s.metrics.RateLimitDenials.WithLabelValues(string(d.Reason)).Inc()
	retry := int(d.RetryAfter.Round(time.Second) / time.Second)
	if d.Reason == ratelimit.TooManyBytes {
		return apperror.New(apperror.KindRateLimited, apperror.ReasonTooManyBytes,
			"upload volume limit of %s reached, retry in %ds",
			humanize.IBytes(uint64(s.limiter.Limits().MaxBytes)), retry)
	}
	return apperror.New(apperror.KindRateLimited, apperror.ReasonTooManyUploads,
		"upload limit of %d files reached, retry in %ds", s.limiter.Limits().MaxUploads, retry)
}

// putBlob writes the object, provisioning a missing bucket and retrying exactly once.
func (s *fileService) putBlob(ctx context.Context, key string, body *payload, opt storage.PutObjectOptions) error {
	r, err := body.reader()
	if err != nil {
		return apperror.Wrap(err, apperror.KindStorageBackend, "", "failed to read upload")
	}
	_, err = s.store.Put(ctx, key, r, opt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotFound) {
		return apperror.Wrap(err, apperror.KindStorageBackend, "", "failed to store file")
	}

	s.log.Warn().Str("key", key).Msg("bucket missing, provisioning")
	if err := s.store.EnsureBucket(ctx); err != nil {
		return apperror.Wrap(err, apperror.KindStorageBackend, "", "failed to provision storage bucket")
	}
	if r, err = body.reader(); err != nil {
		return apperror.Wrap(err, apperror.KindStorageBackend, "", "failed to read upload")
	}
	if _, err := s.store.Put(ctx, key, r, opt); err != nil {
		return apperror.Wrap(err, apperror.KindStorageBackend, "", "failed to store file")
	}
	return nil
}

// rollbackBlob deletes a blob whose metadata write failed. It runs even if ctx is cancelled.
func (s *fileService) rollbackBlob(ctx context.Context, key string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Delete(ctx, key); err != nil {
		s.metrics.Rollbacks.WithLabelValues(metrics.RollbackFailed).Inc()
		s.metrics.OrphanedBlobs.Inc()
		s.log.Error().Err(err).Str("key", key).Msg("rollback failed; blob orphaned")
		return
	}
	s.metrics.Rollbacks.WithLabelValues(metrics.RollbackOK).Inc()
	s.log.Warn().Str("key", key).Msg("blob rolled back after metadata failure")
}

func (s *fileService) presign(ctx context.Context, key string) string {
	url, err := s.store.PresignGet(ctx, key, s.opts.URLExpiry)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to presign download url")
		return ""
	}
	return url
}

func (s *fileService) recordUpload(span trace.Span, size int64, err error) {
	if err == nil {
		s.metrics.Uploads.WithLabelValues(metrics.ResultSuccess, "").Inc()
		s.metrics.UploadedBytes.Add(float64(size))
		return
	}
	kind := apperror.KindOf(err)
	result := metrics.ResultFailed
	switch kind {
	case apperror.KindValidation, apperror.KindRateLimited, apperror.KindQuotaExceeded, apperror.KindAuthorization:
		result = metrics.ResultRejected
	}
	s.metrics.Uploads.WithLabelValues(result, string(kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
}

func (s *fileService) List(ctx context.Context, actor *model.Account, limit, offset int) (*FileListResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	res, err := s.files.ListByOwner(ctx, actor.ID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindPersistence, "", "failed to list files")
	}
	return &FileListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *fileService) Get(ctx context.Context, actor *model.Account, id string) (*model.UploadResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "id is required")
	}
	f, err := s.files.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "file", id)
	}
	if !canSee(actor, f) {
		return nil, apperror.New(apperror.KindNotFound, "", "file %s not found", id)
	}
	return &model.UploadResult{File: f, URL: s.presign(ctx, f.StorageKey)}, nil
}

func (s *fileService) Delete(ctx context.Context, actor *model.Account, id string) error {
	ctx, span := tracer.Start(ctx, "FileService.Delete")
	defer span.End()

	if err := requireActor(actor); err != nil {
		return err
	}
	if id == "" {
		return apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "id is required")
	}
	f, err := s.files.FindByID(ctx, id)
	if err != nil {
		return lookupErr(err, "file", id)
	}
	if f.OwnerID != actor.ID && !actor.IsAdmin {
		if !canSee(actor, f) {
			return apperror.New(apperror.KindNotFound, "", "file %s not found", id)
		}
		return apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole, "only the owner or an admin may delete a file")
	}
	if f.OwnerID != actor.ID {
		// releasing the bytes rewrites the owner's storage_used
		owner, err := s.ledger.Account(ctx, f.OwnerID)
		if err != nil {
			return err
		}
		if err := checkQuotaTarget(actor, owner); err != nil {
			return err
		}
	}

	// Metadata first: once the row is gone no reader can reach the blob.
	if err := s.files.Delete(ctx, id); err != nil {
		return lookupErr(err, "file", id)
	}
	if err := s.store.Delete(ctx, f.StorageKey); err != nil {
		s.metrics.OrphanedBlobs.Inc()
		s.log.Error().Err(err).Str("file_id", id).Str("key", f.StorageKey).Msg("blob delete failed; blob orphaned")
	}
	if err := s.ledger.CommitUsage(ctx, f.OwnerID, -f.Size); err != nil {
		s.metrics.QuotaCommitFailures.Inc()
		s.log.Error().Err(err).Str("account_id", f.OwnerID).Int64("size", f.Size).Msg("quota release failed after delete; usage overcounted")
	}

	s.log.Info().Str("actor_id", actor.ID).Str("file_id", id).Msg("file deleted")
	return nil
}

func canSee(actor *model.Account, f *model.FileRecord) bool {
	if f.OwnerID == actor.ID || actor.IsAdmin || actor.IsModerator {
		return true
	}
	return f.Visibility == model.VisibilityPublic && f.Approval == model.ApprovalApproved
}

// objectKey scopes blobs by owner and upload time.
func objectKey(ownerID, filename string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := fmt.Sprintf("%d-%s%s", at.UnixNano(), uuid.NewString()[:8], ext)
	return path.Join("files", ownerID, name)
}

// payload lets the blob write be replayed after a bucket is provisioned.
type payload struct {
	seeker io.ReadSeeker
	buf    []byte
}

func (p *payload) reader() (io.Reader, error) {
	if p.seeker != nil {
		if _, err := p.seeker.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return p.seeker, nil
	}
	return bytes.NewReader(p.buf), nil
}

// hashPayload computes the sha256 of the whole body and checks it against the declared size.
// Seekable bodies are read twice; anything else is buffered once.
func hashPayload(body io.Reader, size int64) (*payload, string, error) {
	h := sha256.New()
	p := &payload{}
	var n int64
	var err error
	if rs, ok := body.(io.ReadSeeker); ok {
		p.seeker = rs
		n, err = io.Copy(h, rs)
	} else {
		var buf bytes.Buffer
		n, err = io.Copy(io.MultiWriter(h, &buf), body)
		p.buf = buf.Bytes()
	}
	if err != nil {
		return nil, "", apperror.Wrap(err, apperror.KindValidation, apperror.ReasonInvalidInput, "failed to read upload")
	}
	if n != size {
		return nil, "", apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput,
			"declared size %d does not match received %d bytes", size, n)
	}
	return p, hex.EncodeToString(h.Sum(nil)), nil
}
