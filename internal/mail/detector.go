// Package mail provides the inbound side of the tracker (latest message source
// and change detection) and a plain-text sender.
package mail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
)

// Source returns the body of the most recent inbound message.
type Source interface {
	FetchLatestInboundText(ctx context.Context) (string, error)
}

// Fingerprint returns the opaque marker identifying a message text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Detector tracks the fingerprint of the last seen inbound message.
type Detector struct {
	source Source
	store  Store
	logger *zap.Logger

	loaded      bool
	fingerprint string
	message     string
}

func NewDetector(source Source, store Store, logger *zap.Logger) *Detector {
	if store == nil {
		store = &MemoryStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{
		source: source,
		store:  store,
		logger: logger,
	}
}

// HasNewMessage fetches the latest inbound message and reports whether it
// differs from the previously seen one. A positive result replaces the stored
// fingerprint. Without a stored fingerprint every message is new.
func (d *Detector) HasNewMessage(ctx context.Context) (bool, error) {
	if !d.loaded {
		fingerprint, err := d.store.Load()
		if err != nil {
			return false, fmt.Errorf("load fingerprint: %w", err)
		}
		d.fingerprint = fingerprint
		d.loaded = true
	}

	text, err := d.source.FetchLatestInboundText(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch latest inbound message: %w", err)
	}

	fingerprint := Fingerprint(text)
	if d.fingerprint != "" && fingerprint == d.fingerprint {
		return false, nil
	}

	if err := d.store.Save(fingerprint); err != nil {
		// the message is still processed, a restart may process it again
		d.logger.Warn("saving message fingerprint", zap.Error(err))
	}

	d.logger.Debug("new inbound message",
		zap.String("previous", d.fingerprint),
		zap.String("fingerprint", fingerprint),
	)

	d.fingerprint = fingerprint
	d.message = text

	return true, nil
}

// LastMessage returns the text fetched by the last positive check.
func (d *Detector) LastMessage() string {
	return d.message
}
