// Package uploader runs one image uploader instance: select a file, crop
// it, rasterize the crop and hand the result to an upload service, then
// reconcile the caller's gallery.
//
// State machine per instance:
//
//	Idle → FileSelected → Cropping → Uploading → Idle   (success)
//	Cropping → Idle                                     (cancel)
//	Uploading → Idle                                    (upload error, notified)
//	Uploading → Cropping                                (rasterize error, retry)
package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/crop"
	"github.com/fleveque/crop-uploader/internal/model"
)

var (
	// ErrMaxFilesReached blocks opening the picker on a full gallery.
	ErrMaxFilesReached = errors.New("maximum number of files reached")
	// ErrUploadInFlight means the trigger is disabled while an upload runs.
	ErrUploadInFlight = errors.New("an upload is already in progress")
	// ErrNoSession is returned by Save when nothing is being cropped.
	ErrNoSession = errors.New("no crop session open")
	// ErrUnreadableImage means the selected file isn't a decodable image.
	ErrUnreadableImage = errors.New("selected file is not a readable image")
	// ErrRasterizeFailed wraps rasterizer errors; the session stays open.
	ErrRasterizeFailed = errors.New("rasterizing crop failed")
	// ErrUploadFailed wraps upload service errors.
	ErrUploadFailed = errors.New("upload failed")
)

// UploadService is the external upload collaborator. It returns the
// descriptors of the stored files, or an error.
type UploadService interface {
	Upload(ctx context.Context, file *model.RawImage, meta model.FileMetadata) ([]model.UploadedFile, error)
}

// Rasterizer flattens a committed crop into a new image.
type Rasterizer interface {
	Rasterize(ctx context.Context, img *model.RawImage, res model.CropResult) (*model.RawImage, error)
}

// Uploader is a single uploader instance. All methods are safe to call from
// several goroutines, but the flow is meant to be driven by one caller.
type Uploader struct {
	cfg      model.UploaderConfig
	gallery  *Gallery
	raster   Rasterizer
	service  UploadService
	notifier Notifier
	logger   *zap.Logger

	mu            sync.Mutex
	state         model.State
	input         *model.RawImage // the file-input value; cleared after every upload
	session       *crop.Session
	onStateChange func(from, to model.State)
}

type transition struct {
	from, to model.State
}

// New creates an uploader in the Idle state. gallery is shared with the
// caller and may already hold files.
func New(
	cfg model.UploaderConfig,
	gallery *Gallery,
	raster Rasterizer,
	service UploadService,
	notifier Notifier,
	logger *zap.Logger,
) *Uploader {
	if gallery == nil {
		gallery = NewGallery()
	}
	return &Uploader{
		cfg:      cfg,
		gallery:  gallery,
		raster:   raster,
		service:  service,
		notifier: notifier,
		logger:   logger,
		state:    model.StateIdle,
	}
}

// OnStateChange registers an observer for state transitions.
func (u *Uploader) OnStateChange(fn func(from, to model.State)) {
	u.mu.Lock()
	u.onStateChange = fn
	u.mu.Unlock()
}

// State returns the current state.
func (u *Uploader) State() model.State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Pending is the loading flag: true while an upload is in flight.
func (u *Uploader) Pending() bool {
	return u.State() == model.StateUploading
}

// Input returns the currently selected file, or nil once it was cleared.
func (u *Uploader) Input() *model.RawImage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.input
}

// Session returns the open crop session, or nil.
func (u *Uploader) Session() *crop.Session {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session
}

// Gallery returns the shared file list.
func (u *Uploader) Gallery() *Gallery {
	return u.gallery
}

// Config returns the uploader configuration.
func (u *Uploader) Config() model.UploaderConfig {
	return u.cfg
}

// Open is called when the user tries to open the file picker. It's refused
// with a warning once the gallery holds MaxFiles files.
func (u *Uploader) Open() error {
	u.mu.Lock()
	err := u.checkOpenLocked()
	u.mu.Unlock()
	u.warnIfFull(err)
	return err
}

func (u *Uploader) checkOpenLocked() error {
	if u.state == model.StateUploading {
		return ErrUploadInFlight
	}
	if u.cfg.MaxFiles > 0 && u.gallery.Len() >= u.cfg.MaxFiles {
		return ErrMaxFilesReached
	}
	return nil
}

func (u *Uploader) warnIfFull(err error) {
	if errors.Is(err, ErrMaxFilesReached) {
		u.notifier.Warning(fmt.Sprintf("%s: you can upload at most %d file(s), remove one first", u.title(), u.cfg.MaxFiles))
	}
}

// Select takes a picked or dropped file and opens a crop session for it.
// A nil file (picker dismissed) is ignored. Any uncommitted crop is
// discarded.
func (u *Uploader) Select(img *model.RawImage) error {
	if img == nil {
		return nil
	}

	u.mu.Lock()
	if err := u.checkOpenLocked(); err != nil {
		u.mu.Unlock()
		u.warnIfFull(err)
		return err
	}
	session := crop.NewSession(img, u.cfg.AspectRatio)
	u.input = img
	u.session = session
	events := []transition{u.setStateLocked(model.StateFileSelected)}
	u.mu.Unlock()
	u.fire(events)

	loadErr := session.Load()

	u.mu.Lock()
	if u.session != session {
		// Superseded by a newer selection while loading.
		u.mu.Unlock()
		return nil
	}
	if loadErr != nil {
		u.input = nil
		u.session = nil
		events = []transition{u.setStateLocked(model.StateIdle)}
		u.mu.Unlock()
		u.fire(events)

		u.logger.Warn("selected file is not an image",
			zap.String("file", img.Name),
			zap.String("mime_type", img.MIMEType),
			zap.Error(loadErr),
		)
		u.notifier.Error(fmt.Sprintf("%q could not be read as an image", img.Name))
		return fmt.Errorf("%w: %w", ErrUnreadableImage, loadErr)
	}
	events = []transition{u.setStateLocked(model.StateCropping)}
	u.mu.Unlock()
	u.fire(events)

	return nil
}

// Cancel closes the crop dialog, discarding the session with no side
// effects. An in-flight upload can't be cancelled.
func (u *Uploader) Cancel() error {
	u.mu.Lock()
	switch u.state {
	case model.StateUploading:
		u.mu.Unlock()
		return ErrUploadInFlight
	case model.StateIdle:
		u.mu.Unlock()
		return nil
	}
	u.input = nil
	u.session = nil
	events := []transition{u.setStateLocked(model.StateIdle)}
	u.mu.Unlock()
	u.fire(events)
	return nil
}

// Save commits the crop as it is right now, rasterizes it and uploads it.
//
// Outcomes:
//   - no crop area yet: crop.ErrCropNotReady, nothing happens
//   - rasterizer failure: logged, session stays open for another try
//   - upload failure: user notified, gallery unchanged, input cleared
//   - success: descriptors appended to the gallery, input cleared
func (u *Uploader) Save(ctx context.Context) ([]model.UploadedFile, error) {
	u.mu.Lock()
	switch u.state {
	case model.StateUploading:
		u.mu.Unlock()
		return nil, ErrUploadInFlight
	case model.StateCropping:
	default:
		u.mu.Unlock()
		return nil, ErrNoSession
	}

	session := u.session
	res, err := session.Commit()
	if err != nil {
		u.mu.Unlock()
		return nil, err
	}
	events := []transition{u.setStateLocked(model.StateUploading)}
	u.mu.Unlock()
	u.fire(events)

	src := session.Image()
	out, err := u.raster.Rasterize(ctx, src, res)
	if err != nil {
		u.logger.Error("rasterizing crop",
			zap.String("file", src.Name),
			zap.Any("area", res.Area),
			zap.Float64("rotation", res.Rotation),
			zap.Error(err),
		)
		u.mu.Lock()
		events = []transition{u.setStateLocked(model.StateCropping)}
		u.mu.Unlock()
		u.fire(events)
		return nil, fmt.Errorf("%w: %w", ErrRasterizeFailed, err)
	}

	files, err := u.service.Upload(ctx, out, u.cfg.FileMetadata)

	u.mu.Lock()
	u.input = nil
	u.session = nil
	if err != nil {
		events = []transition{u.setStateLocked(model.StateIdle)}
		u.mu.Unlock()
		u.fire(events)

		u.logger.Warn("upload failed",
			zap.String("file", out.Name),
			zap.String("purpose", u.cfg.FileMetadata.Purpose),
			zap.Error(err),
		)
		u.notifier.Error(fmt.Sprintf("Could not upload %q: %v", out.Name, err))
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	u.gallery.Append(files...)
	events = []transition{u.setStateLocked(model.StateIdle)}
	u.mu.Unlock()
	u.fire(events)

	u.logger.Info("file uploaded",
		zap.String("file", out.Name),
		zap.Int("descriptors", len(files)),
		zap.Int("gallery_size", u.gallery.Len()),
	)
	return files, nil
}

// Remove drops a file from the gallery by id. Persisting the removal is the
// caller's business.
func (u *Uploader) Remove(id string) bool {
	return u.gallery.Remove(id)
}

// setStateLocked changes state and returns the transition to report once
// the lock is released. u.mu must be held.
func (u *Uploader) setStateLocked(to model.State) transition {
	from := u.state
	u.state = to
	return transition{from: from, to: to}
}

func (u *Uploader) fire(events []transition) {
	u.mu.Lock()
	fn := u.onStateChange
	u.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range events {
		if e.from != e.to {
			fn(e.from, e.to)
		}
	}
}

func (u *Uploader) title() string {
	if u.cfg.Title != "" {
		return u.cfg.Title
	}
	return "Upload"
}
