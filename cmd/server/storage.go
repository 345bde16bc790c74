package main

import (
	"context"

	"github.com/jeni5888/mayalens/internal/config"
	"github.com/jeni5888/mayalens/internal/storage"
)

func newAssetStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	return storage.NewMinioStore(ctx, storage.MinioOptions{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		PublicURL: cfg.Storage.PublicURL,
	})
}
