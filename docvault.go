package docvault

import (
	"fmt"
	"time"

	"github.com/docvault/docvault/internal/cache"
	"github.com/docvault/docvault/internal/compress"
	"github.com/docvault/docvault/internal/config"
	"github.com/docvault/docvault/internal/convert"
	"github.com/docvault/docvault/internal/event"
	"github.com/docvault/docvault/internal/service"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/internal/store"
)

// Vault wires the version ingestion pipeline from configuration. It is
// the composition root used by the CLI and by embedding applications.
type Vault struct {
	Documents *service.DocumentService
	Versions  *service.VersionService
	Store     store.Store
	Cache     cache.Cache
}

// New builds a Vault from the given configuration.
func New(cnf *config.Config, opts ...service.Option) (*Vault, error) {
	st := store.NewGormStore(config.GetDb(cnf))

	blobs, err := newStorage(cnf)
	if err != nil {
		return nil, err
	}

	artifacts, err := newCache(cnf)
	if err != nil {
		return nil, err
	}

	sink, err := newSink(cnf)
	if err != nil {
		return nil, err
	}

	defaults := []service.Option{service.WithEvents(sink)}
	if cnf.FixOrientation {
		defaults = append(defaults, service.WithOrientationDetector(convert.NullOrientationDetector{}))
	}
	opts = append(defaults, opts...)
	versions := service.NewVersionService(st, blobs, artifacts, convert.NewPDFConverter(), opts...)

	return &Vault{
		Documents: service.NewDocumentService(st, versions),
		Versions:  versions,
		Store:     st,
		Cache:     artifacts,
	}, nil
}

func newStorage(cnf *config.Config) (storage.Storage, error) {
	switch cnf.Storage.Backend {
	case "filesystem", "":
		return storage.NewFilesystem(cnf.Storage.BasePath)
	case "minio":
		return storage.NewMinIO(storage.MinIOConfig{
			Endpoint:  cnf.Storage.MinIOEndpoint,
			AccessKey: cnf.Storage.MinIOAccessKey,
			SecretKey: cnf.Storage.MinIOSecretKey,
			Bucket:    cnf.Storage.MinIOBucket,
			UseSSL:    cnf.Storage.MinIOUseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cnf.Storage.Backend)
	}
}

func newCache(cnf *config.Config) (cache.Cache, error) {
	switch cnf.Cache.Backend {
	case "filesystem", "":
		return cache.NewFilesystem(cnf.Cache.Dir)
	case "redis":
		return cache.NewRedis(
			cnf.Cache.RedisAddr,
			newCodec(cnf.Cache.Codec),
			time.Duration(cnf.Cache.TTLHours)*time.Hour,
		), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cnf.Cache.Backend)
	}
}

func newCodec(name string) compress.Compress {
	switch name {
	case "gzip":
		return compress.NewGZip()
	case "lz4":
		return compress.NewLZ4()
	case "brotli":
		return compress.NewBrotli()
	default:
		return compress.NewNop()
	}
}

func newSink(cnf *config.Config) (event.Sink, error) {
	switch cnf.Events.Sink {
	case "log", "":
		return event.NewLogSink(), nil
	case "kafka":
		return event.NewKafkaSink(cnf.Events.KafkaBrokers, cnf.Events.KafkaTopic)
	case "nop":
		return event.NewNopSink(), nil
	default:
		return nil, fmt.Errorf("unknown event sink: %s", cnf.Events.Sink)
	}
}
