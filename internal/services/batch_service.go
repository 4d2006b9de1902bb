package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"pricing-service/internal/clients"
	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
	"pricing-service/internal/repository"
)

var (
	ErrBatchNotFound           = errors.New("price change batch not found")
	ErrSellerNotFound          = errors.New("seller not found")
	ErrInvalidState            = errors.New("batch cannot perform this operation in its current state")
	ErrConfirmationRequired    = errors.New("a confirmation comment is required for batches with dangerous changes")
	ErrBulkDangerousNotAllowed = errors.New("bulk confirmation is not allowed for batches with dangerous changes")
	ErrAPIKeyNotConfigured     = errors.New("seller has no marketplace API key configured")
	ErrNoProductsSelected      = errors.New("no products matched the selection")
	ErrNothingToRevert         = errors.New("batch has no applied items to revert")
	ErrUnknownChangeType       = errors.New("unknown change type")
	ErrValidation              = errors.New("invalid price change input")
)

// BatchTooLargeError is returned when a selection exceeds the seller's batch
// size cap. The batch is not created; nothing is persisted.
type BatchTooLargeError struct {
	Requested int
	Max       int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("selection of %d products exceeds the batch limit of %d", e.Requested, e.Max)
}

// ClientFactory builds a pricing client for one seller's credentials. Tests
// substitute a fake; production wires the Wildberries client.
type ClientFactory func(seller *models.Seller) clients.PricingClient

// PriceEventPublisher publishes applied price changes to the message bus.
type PriceEventPublisher interface {
	PublishPriceChanged(ctx context.Context, item *models.PriceChangeItem, batch *models.PriceChangeBatch, tenantID string) error
}

// BatchService implements the safe price change workflow: building classified
// batches, the confirmation gate, chunked application against the
// marketplace, and reversal.
type BatchService struct {
	repo      repository.BatchRepositoryInterface
	products  repository.ProductsRepositoryInterface
	sellers   repository.SellersRepositoryInterface
	settings  *SettingsService
	clientFor ClientFactory
	publisher PriceEventPublisher
	logger    *logrus.Entry
}

// NewBatchService creates a new BatchService
func NewBatchService(
	repo repository.BatchRepositoryInterface,
	products repository.ProductsRepositoryInterface,
	sellers repository.SellersRepositoryInterface,
	settings *SettingsService,
	clientFor ClientFactory,
	publisher PriceEventPublisher,
	logger *logrus.Logger,
) *BatchService {
	return &BatchService{
		repo:      repo,
		products:  products,
		sellers:   sellers,
		settings:  settings,
		clientFor: clientFor,
		publisher: publisher,
		logger:    logger.WithField("component", "batch-service"),
	}
}

// BuildBatchInput describes a new batch: the product selection plus the
// change rule applied to every selected product.
type BuildBatchInput struct {
	SellerID      uuid.UUID `json:"sellerId" binding:"required"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	ChangeType    string    `json:"changeType" binding:"required"`
	ChangeValue   *float64  `json:"changeValue"`
	ChangeFormula string    `json:"changeFormula"`
	NewDiscount   *int      `json:"newDiscount"`
	NmIDs         []int64   `json:"nmIds" binding:"required"`
}

// BatchApplyResult summarizes one apply run.
type BatchApplyResult struct {
	BatchID uuid.UUID `json:"batchId"`
	Status  string    `json:"status"`
	Applied int       `json:"applied"`
	Failed  int       `json:"failed"`
	Skipped int       `json:"skipped"`
	Chunks  int       `json:"chunks"`
}

func changeRuleFromInput(input BuildBatchInput) (pricing.ChangeRule, error) {
	rule := pricing.ChangeRule{
		Type:        input.ChangeType,
		Formula:     input.ChangeFormula,
		NewDiscount: input.NewDiscount,
	}
	if input.ChangeValue != nil {
		rule.Value = *input.ChangeValue
	}

	switch input.ChangeType {
	case models.ChangeTypePercent, models.ChangeTypeFixedDelta, models.ChangeTypeTargetPrice:
		if input.ChangeValue == nil {
			return rule, fmt.Errorf("%w: change type %q requires a change value", ErrValidation, input.ChangeType)
		}
	case models.ChangeTypeFormula:
		if input.ChangeFormula == "" {
			return rule, fmt.Errorf("%w: change type formula requires a formula", ErrValidation)
		}
		// Fail fast on syntax errors so a malformed formula rejects the
		// whole build instead of skipping every item.
		if _, err := pricing.ParseFormula(input.ChangeFormula); err != nil {
			return rule, err
		}
	default:
		return rule, ErrUnknownChangeType
	}
	return rule, nil
}

// buildItem computes and classifies one product's proposed change. A
// computation failure produces a skipped item carrying the error, never an
// aborted build.
func buildItem(product *models.Product, rule pricing.ChangeRule, settings *models.PriceSafetySettings) models.PriceChangeItem {
	item := models.PriceChangeItem{
		ProductID:        product.ID,
		NmID:             product.NmID,
		VendorCode:       product.VendorCode,
		ProductTitle:     product.Title,
		OldPrice:         product.Price,
		OldDiscount:      product.Discount,
		OldDiscountPrice: product.DiscountPrice,
		Status:           models.ItemStatusPending,
	}

	proposal, err := pricing.Compute(pricing.Snapshot{
		Price:         product.Price,
		Discount:      product.Discount,
		DiscountPrice: product.DiscountPrice,
	}, rule)
	if err != nil {
		item.Status = models.ItemStatusSkipped
		item.ErrorMessage = err.Error()
		item.SafetyLevel = models.SafetyDangerous
		return item
	}

	item.NewPrice = proposal.NewPrice
	item.NewDiscount = proposal.NewDiscount
	item.NewDiscountPrice = proposal.NewDiscountPrice
	item.PriceChangeAmount = proposal.NewPrice - product.Price
	item.PriceChangePercent = pricing.ChangePercent(product.Price, proposal.NewPrice)
	item.SafetyLevel = pricing.Classify(product.Price, proposal.NewPrice,
		settings.SafeThresholdPercent, settings.WarningThresholdPercent)
	return item
}

// BuildBatch creates a draft batch for the selected products. Every item is
// computed and classified against the seller's thresholds as they are right
// now; the classification is frozen from here on. Depending on the seller's
// mode the batch may auto-confirm.
func (s *BatchService) BuildBatch(ctx context.Context, tenantID string, actorID uuid.UUID, input BuildBatchInput) (*models.PriceChangeBatch, error) {
	rule, err := changeRuleFromInput(input)
	if err != nil {
		return nil, err
	}

	seller, err := s.sellers.GetSellerByID(ctx, tenantID, input.SellerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}

	settings, err := s.settings.Resolve(ctx, tenantID, seller.ID)
	if err != nil {
		return nil, err
	}

	products, err := s.products.GetProductsByNmIDs(ctx, tenantID, seller.ID, input.NmIDs)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNoProductsSelected
	}

	// All-or-nothing: an oversized selection creates no batch and no items.
	if !settings.AllowUnlimitedBatch && len(products) > settings.MaxProductsPerBatch {
		return nil, &BatchTooLargeError{Requested: len(products), Max: settings.MaxProductsPerBatch}
	}

	batch := &models.PriceChangeBatch{
		TenantID:      tenantID,
		SellerID:      seller.ID,
		Name:          input.Name,
		Description:   input.Description,
		ChangeType:    input.ChangeType,
		ChangeValue:   input.ChangeValue,
		ChangeFormula: input.ChangeFormula,
		Status:        models.BatchStatusDraft,
	}

	for i := range products {
		batch.Items = append(batch.Items, buildItem(&products[i], rule, settings))
	}
	batch.RecomputeAggregates(batch.Items)

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"batchID":   batch.ID,
		"sellerID":  seller.ID,
		"total":     batch.TotalItems,
		"safe":      batch.SafeCount,
		"warning":   batch.WarningCount,
		"dangerous": batch.DangerousCount,
	}).Info("Price change batch created")

	if s.shouldAutoConfirm(batch, settings) {
		if err := s.repo.ConfirmBatch(ctx, batch.ID, actorID, "auto-confirmed"); err == nil {
			batch.Status = models.BatchStatusConfirmed
		} else {
			s.logger.WithError(err).WithField("batchID", batch.ID).Warn("Auto-confirmation failed, batch left in draft")
		}
	}

	return batch, nil
}

// shouldAutoConfirm applies the seller's mode to a freshly built batch.
func (s *BatchService) shouldAutoConfirm(batch *models.PriceChangeBatch, settings *models.PriceSafetySettings) bool {
	switch settings.Mode {
	case models.ModeAutoAll:
		return true
	case models.ModeAutoSafe:
		return !batch.HasWarningChanges && !batch.HasDangerousChanges
	default:
		return false
	}
}

// PreviewChanges computes and classifies the selection without persisting
// anything. Used by the review screen before a batch is created.
func (s *BatchService) PreviewChanges(ctx context.Context, tenantID string, input BuildBatchInput) ([]models.PriceChangeItem, error) {
	rule, err := changeRuleFromInput(input)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Resolve(ctx, tenantID, input.SellerID)
	if err != nil {
		return nil, err
	}

	products, err := s.products.GetProductsByNmIDs(ctx, tenantID, input.SellerID, input.NmIDs)
	if err != nil {
		return nil, err
	}

	items := make([]models.PriceChangeItem, 0, len(products))
	for i := range products {
		items = append(items, buildItem(&products[i], rule, settings))
	}
	return items, nil
}

// ConfirmBatch applies the confirmation gate to a draft batch as one bulk
// action. Dangerous content may demand a comment or forbid bulk confirmation
// entirely, depending on the seller's settings.
func (s *BatchService) ConfirmBatch(ctx context.Context, tenantID string, batchID, confirmedBy uuid.UUID, comment string) (*models.PriceChangeBatch, error) {
	batch, err := s.getBatch(ctx, tenantID, batchID, false)
	if err != nil {
		return nil, err
	}
	if !batch.CanConfirm() {
		return nil, ErrInvalidState
	}

	settings, err := s.settings.Resolve(ctx, tenantID, batch.SellerID)
	if err != nil {
		return nil, err
	}

	if batch.HasDangerousChanges {
		if !settings.AllowBulkDangerous {
			return nil, ErrBulkDangerousNotAllowed
		}
		if settings.RequireCommentForDangerous && comment == "" {
			return nil, ErrConfirmationRequired
		}
	}

	if err := s.repo.ConfirmBatch(ctx, batchID, confirmedBy, comment); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"batchID":     batchID,
		"confirmedBy": confirmedBy,
	}).Info("Price change batch confirmed")

	return s.getBatch(ctx, tenantID, batchID, false)
}

// ConfirmBatchItems is the per-item confirmation path for batches whose
// dangerous content blocks bulk confirmation. Items not in the confirmed set
// are skipped; the batch then moves to confirmed with only the chosen items
// still pending.
func (s *BatchService) ConfirmBatchItems(ctx context.Context, tenantID string, batchID, confirmedBy uuid.UUID, itemIDs []uuid.UUID, comment string) (*models.PriceChangeBatch, error) {
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one item must be confirmed", ErrValidation)
	}

	batch, err := s.getBatch(ctx, tenantID, batchID, true)
	if err != nil {
		return nil, err
	}
	if !batch.CanConfirm() {
		return nil, ErrInvalidState
	}

	settings, err := s.settings.Resolve(ctx, tenantID, batch.SellerID)
	if err != nil {
		return nil, err
	}

	confirmed := make(map[uuid.UUID]bool, len(itemIDs))
	for _, id := range itemIDs {
		confirmed[id] = true
	}

	var toSkip []uuid.UUID
	dangerousConfirmed := false
	for i := range batch.Items {
		item := &batch.Items[i]
		if item.Status != models.ItemStatusPending {
			continue
		}
		if !confirmed[item.ID] {
			toSkip = append(toSkip, item.ID)
			continue
		}
		if item.SafetyLevel == models.SafetyDangerous {
			dangerousConfirmed = true
		}
	}

	if dangerousConfirmed && settings.RequireCommentForDangerous && comment == "" {
		return nil, ErrConfirmationRequired
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repository.BatchRepositoryInterface) error {
		txBatch, err := txRepo.GetBatchByID(ctx, tenantID, batchID, true)
		if err != nil {
			return err
		}
		if !txBatch.CanConfirm() {
			return ErrInvalidState
		}

		if err := txRepo.MarkItemsSkipped(ctx, batchID, toSkip, "not confirmed"); err != nil {
			return fmt.Errorf("failed to skip unconfirmed items: %w", err)
		}
		if err := txRepo.ConfirmBatch(ctx, batchID, confirmedBy, comment); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return ErrInvalidState
			}
			return err
		}

		refreshed, err := txRepo.GetBatchByID(ctx, tenantID, batchID, true)
		if err != nil {
			return err
		}
		refreshed.RecomputeAggregates(refreshed.Items)
		return txRepo.UpdateBatchCounters(ctx, refreshed)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"batchID":     batchID,
		"confirmed":   len(itemIDs),
		"skipped":     len(toSkip),
		"confirmedBy": confirmedBy,
	}).Info("Price change batch confirmed per-item")

	return s.getBatch(ctx, tenantID, batchID, false)
}

// ApplyBatch pushes a confirmed batch to the marketplace in chunks. It is
// re-entrant: only pending items are submitted, so re-invoking it on an
// applying batch resumes where the previous run stopped, and re-invoking it
// on a completed batch is a no-op.
func (s *BatchService) ApplyBatch(ctx context.Context, tenantID string, batchID uuid.UUID) (*BatchApplyResult, error) {
	batch, err := s.getBatch(ctx, tenantID, batchID, false)
	if err != nil {
		return nil, err
	}

	// Second apply after completion: nothing pending, nothing to do.
	if batch.Status == models.BatchStatusCompleted {
		return &BatchApplyResult{
			BatchID: batch.ID,
			Status:  batch.Status,
			Applied: batch.AppliedCount,
			Failed:  batch.FailedCount,
			Skipped: batch.SkippedCount,
		}, nil
	}
	if !batch.CanApply() {
		return nil, ErrInvalidState
	}

	seller, err := s.sellers.GetSellerByID(ctx, tenantID, batch.SellerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}
	if !seller.HasValidAPIKey() {
		return nil, ErrAPIKeyNotConfigured
	}

	client := s.clientFor(seller)

	resumed := batch.Status == models.BatchStatusApplying || batch.AppliedCount > 0 || batch.FailedCount > 0
	if err := s.repo.ClaimApplying(ctx, batchID); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	pending, err := s.repo.ListPendingItems(ctx, batchID)
	if err != nil {
		return nil, err
	}

	result, applyErrs := s.applyChunks(ctx, tenantID, batch, pending, client, resumed)

	// Terminal status: failed only when the very first chunk could not even
	// reach the marketplace; partial failure is still a completed batch.
	finalStatus := models.BatchStatusCompleted
	if result.totalFailure {
		finalStatus = models.BatchStatusFailed
	}

	refreshed, err := s.getBatch(ctx, tenantID, batchID, true)
	if err != nil {
		return nil, err
	}
	refreshed.RecomputeAggregates(refreshed.Items)

	var applyErrorsJSON []byte
	if len(applyErrs) > 0 {
		applyErrorsJSON, _ = json.Marshal(applyErrs)
	}
	if err := s.repo.FinishBatch(ctx, refreshed, finalStatus, applyErrorsJSON); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBatchCounters(ctx, refreshed); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"batchID": batchID,
		"status":  finalStatus,
		"applied": refreshed.AppliedCount,
		"failed":  refreshed.FailedCount,
		"chunks":  result.chunks,
	}).Info("Price change batch apply finished")

	return &BatchApplyResult{
		BatchID: batchID,
		Status:  finalStatus,
		Applied: refreshed.AppliedCount,
		Failed:  refreshed.FailedCount,
		Skipped: refreshed.SkippedCount,
		Chunks:  result.chunks,
	}, nil
}

type applyRun struct {
	chunks       int
	totalFailure bool
}

type chunkError struct {
	Chunk int    `json:"chunk"`
	Error string `json:"error"`
}

// applyChunks submits pending items chunk by chunk. A chunk-level transport
// failure fails that chunk's items and moves on; only a transport failure on
// the first chunk of a fresh run, with no prior progress, declares the whole
// batch failed.
func (s *BatchService) applyChunks(ctx context.Context, tenantID string, batch *models.PriceChangeBatch, pending []models.PriceChangeItem, client clients.PricingClient, resumed bool) (applyRun, []chunkError) {
	run := applyRun{}
	var applyErrs []chunkError

	chunkSize := client.MaxChunkSize()
	if chunkSize <= 0 {
		chunkSize = 1
	}

	for start := 0; start < len(pending); start += chunkSize {
		end := start + chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]
		chunkIndex := run.chunks
		run.chunks++

		updates := make([]clients.PriceUpdate, 0, len(chunk))
		nmIDs := make(pq.Int64Array, 0, len(chunk))
		byNmID := make(map[int64]*models.PriceChangeItem, len(chunk))
		for i := range chunk {
			item := &chunk[i]
			discount := item.NewDiscount
			updates = append(updates, clients.PriceUpdate{
				NmID:     item.NmID,
				Price:    int(item.NewPrice),
				Discount: &discount,
			})
			nmIDs = append(nmIDs, item.NmID)
			byNmID[item.NmID] = item
		}

		started := time.Now()
		submitResult, err := client.SubmitPriceUpdate(ctx, updates)
		duration := time.Since(started).Milliseconds()

		logEntry := &models.PriceApplyLog{
			TenantID:   tenantID,
			BatchID:    batch.ID,
			ChunkIndex: chunkIndex,
			NmIDs:      nmIDs,
			ItemCount:  len(chunk),
			DurationMs: duration,
		}

		if err != nil {
			logEntry.ErrorMessage = err.Error()
			if logErr := s.repo.CreateApplyLog(ctx, logEntry); logErr != nil {
				s.logger.WithError(logErr).Warn("Failed to record apply log")
			}
			applyErrs = append(applyErrs, chunkError{Chunk: chunkIndex, Error: err.Error()})

			var transportErr *clients.TransportError
			if errors.As(err, &transportErr) && chunkIndex == 0 && !resumed {
				// No progress was possible at all. The items stay pending as a
				// record of what was never submitted; the batch itself moves
				// to failed and a retry means building a new batch.
				run.totalFailure = true
				return run, applyErrs
			}

			ids := make([]uuid.UUID, 0, len(chunk))
			for i := range chunk {
				ids = append(ids, chunk[i].ID)
			}
			if markErr := s.repo.MarkItemsFailed(ctx, batch.ID, ids, err.Error()); markErr != nil {
				s.logger.WithError(markErr).Error("Failed to mark chunk items failed")
			}
			continue
		}

		logEntry.Success = true
		if logErr := s.repo.CreateApplyLog(ctx, logEntry); logErr != nil {
			s.logger.WithError(logErr).Warn("Failed to record apply log")
		}

		s.recordChunkOutcome(ctx, tenantID, batch, byNmID, submitResult)
	}

	return run, applyErrs
}

// recordChunkOutcome persists per-item results for one accepted chunk:
// applied/failed item statuses, product price write-back, history rows and
// price change events.
func (s *BatchService) recordChunkOutcome(ctx context.Context, tenantID string, batch *models.PriceChangeBatch, byNmID map[int64]*models.PriceChangeItem, result *clients.PriceUpdateResult) {
	appliedAt := time.Now()

	var appliedIDs []uuid.UUID
	var history []models.PriceHistory
	for _, nmID := range result.Accepted {
		item, ok := byNmID[nmID]
		if !ok {
			continue
		}
		appliedIDs = append(appliedIDs, item.ID)
		history = append(history, models.PriceHistory{
			TenantID:      tenantID,
			SellerID:      batch.SellerID,
			ProductID:     item.ProductID,
			BatchID:       &batch.ID,
			OldPrice:      item.OldPrice,
			NewPrice:      item.NewPrice,
			ChangePercent: item.PriceChangePercent,
			Source:        "batch",
		})
	}

	if err := s.repo.MarkItemsApplied(ctx, batch.ID, appliedIDs, appliedAt); err != nil {
		s.logger.WithError(err).Error("Failed to mark items applied")
	}
	if err := s.repo.CreatePriceHistory(ctx, history); err != nil {
		s.logger.WithError(err).Error("Failed to record price history")
	}

	for _, nmID := range result.Accepted {
		item, ok := byNmID[nmID]
		if !ok {
			continue
		}
		// The catalog write-back happens only after the marketplace accepted
		// the item, never speculatively.
		if err := s.products.UpdateProductPrice(ctx, tenantID, item.ProductID, item.NewPrice, item.NewDiscount, item.NewDiscountPrice); err != nil {
			s.logger.WithError(err).WithField("nmID", nmID).Warn("Failed to write applied price back to catalog")
		}
		if s.publisher != nil {
			_ = s.publisher.PublishPriceChanged(ctx, item, batch, tenantID)
		}
	}

	for _, rejection := range result.Rejected {
		item, ok := byNmID[rejection.NmID]
		if !ok {
			continue
		}
		if err := s.repo.MarkItemFailed(ctx, batch.ID, item.ID, rejection.Reason); err != nil {
			s.logger.WithError(err).WithField("nmID", rejection.NmID).Error("Failed to mark item failed")
		}
	}
}

// RevertBatch builds a reversal batch from a completed batch's applied items.
// New prices come from the stored old values, not a recomputation, so the
// round trip is exact. The reversal is a normal draft batch: it goes through
// its own confirm/apply cycle and the same safety gate.
func (s *BatchService) RevertBatch(ctx context.Context, tenantID string, batchID, revertedBy uuid.UUID) (*models.PriceChangeBatch, error) {
	source, err := s.getBatch(ctx, tenantID, batchID, true)
	if err != nil {
		return nil, err
	}
	if !source.CanRevert() {
		return nil, ErrInvalidState
	}

	settings, err := s.settings.Resolve(ctx, tenantID, source.SellerID)
	if err != nil {
		return nil, err
	}

	revert := &models.PriceChangeBatch{
		TenantID:       tenantID,
		SellerID:       source.SellerID,
		Name:           fmt.Sprintf("Revert: %s", source.Name),
		Description:    fmt.Sprintf("Reverts batch %s", source.ID),
		ChangeType:     models.ChangeTypeRevert,
		Status:         models.BatchStatusDraft,
		RevertsBatchID: &source.ID,
	}

	for i := range source.Items {
		item := &source.Items[i]
		if item.Status != models.ItemStatusApplied {
			continue
		}
		revertItem := models.PriceChangeItem{
			ProductID:          item.ProductID,
			NmID:               item.NmID,
			VendorCode:         item.VendorCode,
			ProductTitle:       item.ProductTitle,
			OldPrice:           item.NewPrice,
			OldDiscount:        item.NewDiscount,
			OldDiscountPrice:   item.NewDiscountPrice,
			NewPrice:           item.OldPrice,
			NewDiscount:        item.OldDiscount,
			NewDiscountPrice:   item.OldDiscountPrice,
			PriceChangeAmount:  item.OldPrice - item.NewPrice,
			PriceChangePercent: pricing.ChangePercent(item.NewPrice, item.OldPrice),
			SafetyLevel: pricing.Classify(item.NewPrice, item.OldPrice,
				settings.SafeThresholdPercent, settings.WarningThresholdPercent),
			Status: models.ItemStatusPending,
		}
		revert.Items = append(revert.Items, revertItem)
	}

	if len(revert.Items) == 0 {
		return nil, ErrNothingToRevert
	}
	revert.RecomputeAggregates(revert.Items)

	err = s.repo.WithTransaction(ctx, func(txRepo repository.BatchRepositoryInterface) error {
		if err := txRepo.CreateBatch(ctx, revert); err != nil {
			return fmt.Errorf("failed to create reversal batch: %w", err)
		}
		if err := txRepo.MarkReverted(ctx, source.ID, revertedBy, revert.ID); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return ErrInvalidState
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"sourceBatchID": source.ID,
		"revertBatchID": revert.ID,
		"items":         revert.TotalItems,
	}).Info("Reversal batch created")

	return revert, nil
}

// CancelBatch abandons a batch that has not started applying
func (s *BatchService) CancelBatch(ctx context.Context, tenantID string, batchID, cancelledBy uuid.UUID) (*models.PriceChangeBatch, error) {
	batch, err := s.getBatch(ctx, tenantID, batchID, false)
	if err != nil {
		return nil, err
	}
	if !batch.CanCancel() {
		return nil, ErrInvalidState
	}

	if err := s.repo.CancelBatch(ctx, batchID, cancelledBy); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	return s.getBatch(ctx, tenantID, batchID, false)
}

// DeleteBatch removes a draft batch and its items entirely
func (s *BatchService) DeleteBatch(ctx context.Context, tenantID string, batchID uuid.UUID) error {
	batch, err := s.getBatch(ctx, tenantID, batchID, false)
	if err != nil {
		return err
	}
	if batch.Status != models.BatchStatusDraft {
		return ErrInvalidState
	}

	if err := s.repo.DeleteBatch(ctx, tenantID, batchID); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return ErrInvalidState
		}
		return err
	}
	return nil
}

// GetBatch retrieves a batch, optionally with its items
func (s *BatchService) GetBatch(ctx context.Context, tenantID string, batchID uuid.UUID, withItems bool) (*models.PriceChangeBatch, error) {
	return s.getBatch(ctx, tenantID, batchID, withItems)
}

// BatchSummary is the review-screen view of a batch: the counters plus what
// the confirmation gate will demand for this content.
type BatchSummary struct {
	BatchID    uuid.UUID `json:"batchId"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	ChangeType string    `json:"changeType"`

	TotalItems     int `json:"totalItems"`
	SafeCount      int `json:"safeCount"`
	WarningCount   int `json:"warningCount"`
	DangerousCount int `json:"dangerousCount"`
	AppliedCount   int `json:"appliedCount"`
	FailedCount    int `json:"failedCount"`
	SkippedCount   int `json:"skippedCount"`

	RequiresComment  bool `json:"requiresComment"`
	AllowBulkConfirm bool `json:"allowBulkConfirm"`
	Reverted         bool `json:"reverted"`

	CreatedAt   time.Time  `json:"createdAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	AppliedAt   *time.Time `json:"appliedAt,omitempty"`
}

// GetBatchSummary returns the batch counters together with the confirmation
// requirements derived from the seller's current settings.
func (s *BatchService) GetBatchSummary(ctx context.Context, tenantID string, batchID uuid.UUID) (*BatchSummary, error) {
	batch, err := s.getBatch(ctx, tenantID, batchID, false)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Resolve(ctx, tenantID, batch.SellerID)
	if err != nil {
		return nil, err
	}

	return &BatchSummary{
		BatchID:          batch.ID,
		Name:             batch.Name,
		Status:           batch.Status,
		ChangeType:       batch.ChangeType,
		TotalItems:       batch.TotalItems,
		SafeCount:        batch.SafeCount,
		WarningCount:     batch.WarningCount,
		DangerousCount:   batch.DangerousCount,
		AppliedCount:     batch.AppliedCount,
		FailedCount:      batch.FailedCount,
		SkippedCount:     batch.SkippedCount,
		RequiresComment:  batch.HasDangerousChanges && settings.RequireCommentForDangerous,
		AllowBulkConfirm: !batch.HasDangerousChanges || settings.AllowBulkDangerous,
		Reverted:         batch.Reverted,
		CreatedAt:        batch.CreatedAt,
		ConfirmedAt:      batch.ConfirmedAt,
		AppliedAt:        batch.AppliedAt,
	}, nil
}

// ListBatches retrieves batches for a tenant with filters and pagination
func (s *BatchService) ListBatches(ctx context.Context, tenantID string, filter repository.BatchFilter, limit, offset int) ([]models.PriceChangeBatch, int64, error) {
	return s.repo.ListBatches(ctx, tenantID, filter, limit, offset)
}

// ListItems retrieves a batch's items with safety/status filters
func (s *BatchService) ListItems(ctx context.Context, tenantID string, batchID uuid.UUID, filter repository.ItemFilter, limit, offset int) ([]models.PriceChangeItem, int64, error) {
	if _, err := s.getBatch(ctx, tenantID, batchID, false); err != nil {
		return nil, 0, err
	}
	return s.repo.ListItems(ctx, batchID, filter, limit, offset)
}

// ListApplyLogs retrieves the per-chunk submission audit for a batch
func (s *BatchService) ListApplyLogs(ctx context.Context, tenantID string, batchID uuid.UUID) ([]models.PriceApplyLog, error) {
	if _, err := s.getBatch(ctx, tenantID, batchID, false); err != nil {
		return nil, err
	}
	return s.repo.ListApplyLogs(ctx, batchID)
}

// ListPriceHistory retrieves applied price changes for the tenant, newest
// first, optionally narrowed to one seller, product or batch.
func (s *BatchService) ListPriceHistory(ctx context.Context, tenantID string, filter repository.HistoryFilter, limit, offset int) ([]models.PriceHistory, int64, error) {
	return s.repo.ListPriceHistory(ctx, tenantID, filter, limit, offset)
}

func (s *BatchService) getBatch(ctx context.Context, tenantID string, batchID uuid.UUID, withItems bool) (*models.PriceChangeBatch, error) {
	batch, err := s.repo.GetBatchByID(ctx, tenantID, batchID, withItems)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return batch, nil
}
