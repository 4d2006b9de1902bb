package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/models"
)

func newSettingsServiceForTest(stored *models.PriceSafetySettings) (*SettingsService, *fakeSettingsRepo) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	repo := &fakeSettingsRepo{settings: stored}
	return NewSettingsService(repo, logger), repo
}

func TestResolveReturnsDefaultsWithoutRow(t *testing.T) {
	svc, repo := newSettingsServiceForTest(nil)
	sellerID := uuid.New()

	settings, err := svc.Resolve(context.Background(), testTenant, sellerID)
	require.NoError(t, err)

	assert.Equal(t, 5.0, settings.SafeThresholdPercent)
	assert.Equal(t, 20.0, settings.WarningThresholdPercent)
	assert.Equal(t, models.ModeManual, settings.Mode)
	assert.True(t, settings.RequireCommentForDangerous)
	assert.False(t, settings.AllowBulkDangerous)
	assert.Equal(t, 100, settings.MaxProductsPerBatch)
	assert.Nil(t, repo.settings, "defaults are not persisted")
}

func TestResolveReturnsStoredRow(t *testing.T) {
	sellerID := uuid.New()
	stored := models.DefaultSafetySettings(testTenant, sellerID)
	stored.SafeThresholdPercent = 2
	svc, _ := newSettingsServiceForTest(stored)

	settings, err := svc.Resolve(context.Background(), testTenant, sellerID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, settings.SafeThresholdPercent)
}

func TestUpdateSettingsValidation(t *testing.T) {
	valid := UpdateSettingsInput{
		IsEnabled:               true,
		SafeThresholdPercent:    5,
		WarningThresholdPercent: 20,
		Mode:                    models.ModeManual,
	}

	tests := []struct {
		name    string
		mutate  func(in *UpdateSettingsInput)
		wantErr error
	}{
		{"negative safe threshold", func(in *UpdateSettingsInput) { in.SafeThresholdPercent = -1 }, ErrInvalidThresholds},
		{"safe equals warning", func(in *UpdateSettingsInput) { in.SafeThresholdPercent = 20 }, ErrInvalidThresholds},
		{"safe above warning", func(in *UpdateSettingsInput) { in.SafeThresholdPercent = 25 }, ErrInvalidThresholds},
		{"unknown mode", func(in *UpdateSettingsInput) { in.Mode = "aggressive" }, ErrInvalidMode},
		{"empty mode", func(in *UpdateSettingsInput) { in.Mode = "" }, ErrInvalidMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newSettingsServiceForTest(nil)
			input := valid
			tt.mutate(&input)
			_, err := svc.Update(context.Background(), testTenant, uuid.New(), input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateSettingsPersists(t *testing.T) {
	svc, repo := newSettingsServiceForTest(nil)
	sellerID := uuid.New()

	settings, err := svc.Update(context.Background(), testTenant, sellerID, UpdateSettingsInput{
		IsEnabled:               true,
		SafeThresholdPercent:    3,
		WarningThresholdPercent: 15,
		Mode:                    models.ModeAutoSafe,
		AllowBulkDangerous:      true,
		MaxProductsPerBatch:     250,
	})
	require.NoError(t, err)

	assert.Equal(t, sellerID, settings.SellerID)
	assert.Equal(t, 3.0, settings.SafeThresholdPercent)
	assert.Equal(t, models.ModeAutoSafe, settings.Mode)
	assert.Equal(t, 250, settings.MaxProductsPerBatch)
	require.NotNil(t, repo.settings)
	assert.Equal(t, settings, repo.settings)
}

func TestUpdateSettingsDefaultsBatchCap(t *testing.T) {
	svc, _ := newSettingsServiceForTest(nil)

	settings, err := svc.Update(context.Background(), testTenant, uuid.New(), UpdateSettingsInput{
		SafeThresholdPercent:    5,
		WarningThresholdPercent: 20,
		Mode:                    models.ModeManual,
		MaxProductsPerBatch:     0,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxProductsPerBatch, settings.MaxProductsPerBatch)
}
