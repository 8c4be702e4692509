package gifticon

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/zombor/gifticon-wallet/internal/extract"
	"github.com/zombor/gifticon-wallet/internal/scanning"
)

// IDGenerator generates unique IDs for gifticons
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles gifticon operations
type Service struct {
	db          DB
	recognizer  scanning.Recognizer
	barcodes    scanning.BarcodeDecoder
	extractor   *extract.Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, recognizer scanning.Recognizer, storage Storage) *Service {
	return NewServiceWithDeps(db, recognizer, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		extractor:   extract.NewExtractor(),
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// WithBarcodeDecoder enables reading the barcode number off uploaded images
func (s *Service) WithBarcodeDecoder(d scanning.BarcodeDecoder) *Service {
	s.barcodes = d
	return s
}

// WithExtractor replaces the default extractor, e.g. to use a custom brand list
func (s *Service) WithExtractor(e *extract.Extractor) *Service {
	s.extractor = e
	return s
}

var (
	reFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = reFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(reSpaces.ReplaceAllString(base, " "))

	// Truncate to 50 runes so Hangul names are never cut mid-character
	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "gifticon"
	}

	return base + ext
}

// ExtractText runs the extractor over already-recognized text fragments
func (s *Service) ExtractText(texts []string) extract.Result {
	return s.extractor.Extract(texts, s.timeSource.Now())
}

// storeImage saves an uploaded image under a fresh ID
func (s *Service) storeImage(filename string, data []byte) (string, string, error) {
	id := s.idGenerator.Generate()
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return "", "", fmt.Errorf("saving file: %w", err)
	}
	return id, savedPath, nil
}

// recognize runs OCR and the extractor. OCR failures and images without
// text are not errors: the caller gets the basic info to review.
func (s *Service) recognize(filename string, data []byte, contentType string, now time.Time) extract.Result {
	texts, err := s.recognizer.RecognizeText(data, contentType)
	if err != nil {
		slog.Warn("Failed to recognize text, using basic info",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return extract.BasicInfo(now)
	}
	if len(texts) == 0 {
		slog.Warn("No text recognized, using basic info", "filename", filename)
		return extract.BasicInfo(now)
	}

	slog.Debug("Recognized text", "filename", filename, "fragments", len(texts))
	return s.extractor.Extract(texts, now)
}

// decodeBarcode returns the barcode number, or "" when it cannot be read
func (s *Service) decodeBarcode(data []byte, contentType string) string {
	if s.barcodes == nil {
		return ""
	}
	code, err := s.barcodes.DecodeBarcode(data, contentType)
	if err != nil {
		slog.Debug("No barcode decoded", "error", err)
		return ""
	}
	return code
}

// Scan stores an uploaded voucher image and returns a draft gifticon built
// from its text. The draft is not saved; see CreateGifticon.
func (s *Service) Scan(filename string, data []byte, contentType string) (*Gifticon, error) {
	now := s.timeSource.Now()

	id, savedPath, err := s.storeImage(filename, data)
	if err != nil {
		return nil, err
	}

	result := s.recognize(filename, data, contentType, now)

	draft := NewGifticon(result.Brand, result.ProductName, result.ExpirationDate, savedPath)
	draft.ID = id
	draft.ContentType = contentType
	draft.Barcode = s.decodeBarcode(data, contentType)
	draft.CreatedAt = now
	draft.UpdatedAt = now
	return draft, nil
}

// validate trims text fields and checks required ones
func validate(g *Gifticon) error {
	g.Brand = strings.TrimSpace(g.Brand)
	g.ProductName = strings.TrimSpace(g.ProductName)
	g.Barcode = strings.TrimSpace(g.Barcode)
	if err := fieldValidator.Struct(g); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalid, formatFieldError(fieldErrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if g.ExpirationDate.IsZero() {
		return fmt.Errorf("%w: expiration date is required", ErrInvalid)
	}
	return nil
}

var fieldValidator = validator.New()

var fieldNames = map[string]string{
	"Brand":         "brand",
	"ProductName":   "product name",
	"Price":         "price",
	"OriginalPrice": "original price",
}

func formatFieldError(e validator.FieldError) string {
	name, ok := fieldNames[e.StructField()]
	if !ok {
		name = e.Field()
	}
	switch e.Tag() {
	case "required":
		return name + " is required"
	case "gte":
		return name + " must not be negative"
	default:
		return name + " is invalid"
	}
}

// CreateGifticon saves a reviewed draft or a manually entered gifticon
func (s *Service) CreateGifticon(gifticon *Gifticon) error {
	if err := validate(gifticon); err != nil {
		return err
	}

	now := s.timeSource.Now()
	if gifticon.ID == "" {
		gifticon.ID = s.idGenerator.Generate()
	} else if err := s.checkIDFree(gifticon.ID); err != nil {
		return err
	}
	if gifticon.CreatedAt.IsZero() {
		gifticon.CreatedAt = now
	}
	gifticon.UpdatedAt = now
	gifticon.TrashedAt = nil

	if err := s.db.SaveGifticon(gifticon); err != nil {
		return fmt.Errorf("saving gifticon to database: %w", err)
	}
	return nil
}

// checkIDFree fails with ErrAlreadyExists when id names a gifticon in the
// wallet or in the trash
func (s *Service) checkIDFree(id string) error {
	for _, lookup := range []func(string) (*Gifticon, error){s.db.GetGifticon, s.db.GetTrashed} {
		_, err := lookup(id)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("checking gifticon id: %w", err)
		}
	}
	return nil
}

// ProcessGifticon uploads a voucher image, scans it, and saves it
func (s *Service) ProcessGifticon(filename string, data []byte, contentType string) (*Gifticon, error) {
	draft, err := s.Scan(filename, data, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.CreateGifticon(draft); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(draft.ImagePath)
		return nil, err
	}
	return draft, nil
}

// SaveWithBasicInfo stores the image without OCR, with placeholder brand
// and product name and an expiration 30 days out
func (s *Service) SaveWithBasicInfo(filename string, data []byte, contentType string) (*Gifticon, error) {
	now := s.timeSource.Now()

	id, savedPath, err := s.storeImage(filename, data)
	if err != nil {
		return nil, err
	}

	info := extract.BasicInfo(now)
	gifticon := NewGifticon(info.Brand, info.ProductName, info.ExpirationDate, savedPath)
	gifticon.ID = id
	gifticon.ContentType = contentType
	if err := s.CreateGifticon(gifticon); err != nil {
		s.storage.Delete(savedPath)
		return nil, err
	}
	return gifticon, nil
}

// GetGifticon retrieves a gifticon by ID
func (s *Service) GetGifticon(id string) (*Gifticon, error) {
	gifticon, err := s.db.GetGifticon(id)
	if err != nil {
		return nil, fmt.Errorf("getting gifticon: %w", err)
	}
	return gifticon, nil
}

// GetGifticonImage retrieves the image data for a gifticon
func (s *Service) GetGifticonImage(id string) ([]byte, string, error) {
	gifticon, err := s.db.GetGifticon(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting gifticon: %w", err)
	}
	if gifticon.ImagePath == "" {
		return nil, "", fmt.Errorf("%w: %s has no image", ErrNotFound, id)
	}

	data, err := s.storage.Get(gifticon.ImagePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting gifticon image: %w", err)
	}

	contentType := gifticon.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// ListAvailable returns the gifticons that can still be used, soonest to expire first
func (s *Service) ListAvailable() ([]*Gifticon, error) {
	gifticons, err := s.db.ListGifticons()
	if err != nil {
		return nil, fmt.Errorf("listing gifticons: %w", err)
	}
	available, _ := Partition(gifticons, s.timeSource.Now())
	sortByExpiration(available, SortAsc)
	return available, nil
}

// ListUsedOrExpired returns the used and expired gifticons matching filter
func (s *Service) ListUsedOrExpired(filter StatusFilter, order SortOrder) ([]*Gifticon, error) {
	gifticons, err := s.db.ListGifticons()
	if err != nil {
		return nil, fmt.Errorf("listing gifticons: %w", err)
	}
	now := s.timeSource.Now()
	_, usedOrExpired := Partition(gifticons, now)

	matched := make([]*Gifticon, 0, len(usedOrExpired))
	for _, g := range usedOrExpired {
		if filter.matches(g, now) {
			matched = append(matched, g)
		}
	}
	sortByExpiration(matched, order)
	return matched, nil
}

// Update holds the editable fields of a gifticon; nil fields are left unchanged
type Update struct {
	Brand          *string    `json:"brand"`
	ProductName    *string    `json:"product_name"`
	ExpirationDate *time.Time `json:"expiration_date"`
	Price          *int       `json:"price"`
	OriginalPrice  *int       `json:"original_price"`
	Barcode        *string    `json:"barcode"`
}

// UpdateGifticon applies an edit to a gifticon
func (s *Service) UpdateGifticon(id string, update Update) (*Gifticon, error) {
	current, err := s.db.GetGifticon(id)
	if err != nil {
		return nil, fmt.Errorf("getting gifticon for update: %w", err)
	}

	// Edit a copy so a rejected update leaves the record untouched
	gifticon := *current
	if update.Brand != nil {
		gifticon.Brand = *update.Brand
	}
	if update.ProductName != nil {
		gifticon.ProductName = *update.ProductName
	}
	if update.ExpirationDate != nil {
		gifticon.ExpirationDate = *update.ExpirationDate
	}
	if update.Price != nil {
		gifticon.Price = update.Price
	}
	if update.OriginalPrice != nil {
		gifticon.OriginalPrice = update.OriginalPrice
	}
	if update.Barcode != nil {
		gifticon.Barcode = *update.Barcode
	}
	if err := validate(&gifticon); err != nil {
		return nil, err
	}

	gifticon.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveGifticon(&gifticon); err != nil {
		return nil, fmt.Errorf("updating gifticon: %w", err)
	}
	return &gifticon, nil
}

func (s *Service) setUsed(id string, used bool) (*Gifticon, error) {
	gifticon, err := s.db.GetGifticon(id)
	if err != nil {
		return nil, fmt.Errorf("getting gifticon: %w", err)
	}
	if gifticon.IsUsed == used {
		return gifticon, nil
	}

	gifticon.IsUsed = used
	gifticon.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveGifticon(gifticon); err != nil {
		return nil, fmt.Errorf("updating gifticon: %w", err)
	}
	return gifticon, nil
}

// MarkUsed marks a gifticon as redeemed
func (s *Service) MarkUsed(id string) (*Gifticon, error) {
	return s.setUsed(id, true)
}

// MarkUnused reverts a gifticon marked used by mistake
func (s *Service) MarkUnused(id string) (*Gifticon, error) {
	return s.setUsed(id, false)
}

// MoveToTrash soft-deletes a gifticon; its image is kept until it is
// deleted permanently
func (s *Service) MoveToTrash(id string) error {
	if _, err := s.db.TrashGifticon(id, s.timeSource.Now()); err != nil {
		return fmt.Errorf("moving gifticon to trash: %w", err)
	}
	return nil
}

// ListTrash returns the trashed gifticons, most recently trashed first
func (s *Service) ListTrash() ([]*Gifticon, error) {
	gifticons, err := s.db.ListTrash()
	if err != nil {
		return nil, fmt.Errorf("listing trash: %w", err)
	}
	trashedAt := func(g *Gifticon) time.Time {
		if g.TrashedAt == nil {
			return time.Time{}
		}
		return *g.TrashedAt
	}
	sort.SliceStable(gifticons, func(i, j int) bool {
		return trashedAt(gifticons[i]).After(trashedAt(gifticons[j]))
	})
	return gifticons, nil
}

// RestoreGifticon moves a gifticon out of the trash
func (s *Service) RestoreGifticon(id string) (*Gifticon, error) {
	gifticon, err := s.db.RestoreGifticon(id, s.timeSource.Now())
	if err != nil {
		return nil, fmt.Errorf("restoring gifticon: %w", err)
	}
	return gifticon, nil
}

// DeletePermanently removes a trashed gifticon and its image
func (s *Service) DeletePermanently(id string) error {
	gifticon, err := s.db.GetTrashed(id)
	if err != nil {
		return fmt.Errorf("getting gifticon for deletion: %w", err)
	}
	s.removeImage(gifticon)

	if err := s.db.DeleteTrashed(id); err != nil {
		return fmt.Errorf("deleting gifticon from database: %w", err)
	}
	return nil
}

// DeleteGifticon removes a gifticon and its image right away, skipping the
// trash
func (s *Service) DeleteGifticon(id string) error {
	gifticon, err := s.db.GetGifticon(id)
	if err != nil {
		return fmt.Errorf("getting gifticon for deletion: %w", err)
	}
	s.removeImage(gifticon)

	if err := s.db.DeleteGifticon(id); err != nil {
		return fmt.Errorf("deleting gifticon from database: %w", err)
	}
	return nil
}

// removeImage deletes a gifticon's image. Failures are logged; the record
// is deleted regardless.
func (s *Service) removeImage(gifticon *Gifticon) {
	if gifticon.ImagePath == "" {
		return
	}
	if err := s.storage.Delete(gifticon.ImagePath); err != nil {
		slog.Warn("Failed to delete image", "image_path", gifticon.ImagePath, "error", err)
	}
}
